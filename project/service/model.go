package service

import "net/http"

// DispatchPayload はディスパッチャーからワーカーへ渡すジョブペイロードです
type DispatchPayload struct {
	// AppID は Slack アプリの ID
	AppID string `json:"app_id"`

	// ChannelID はメンションが投稿されたチャンネルの ID
	ChannelID string `json:"channel_id"`

	// TeamID は Slack ワークスペースの ID
	TeamID string `json:"team_id"`

	// Text はメンションに続くユーザー入力テキスト
	Text string `json:"text"`

	// TS は返信先スレッドのタイムスタンプ
	TS string `json:"ts"`

	// UserID はメンションしたユーザーの ID
	UserID string `json:"user_id"`
}

// Inbound は Slack から受信した webhook リクエストです
type Inbound struct {
	Header http.Header
	Body   []byte
}

// Response は呼び出し元へ返す応答です
// StatusCode は常に 200 で、Body は URL 検証の challenge 応答時のみ設定されます
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}

// newResponse は成功応答を作成します
func newResponse(body string) Response {
	return Response{StatusCode: http.StatusOK, Body: body}
}
