package dto

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// SlackEventRequest は Slack Events API のリクエスト全体を表します
type SlackEventRequest struct {
	Token     string     `json:"token"`
	TeamID    string     `json:"team_id"`
	APIAppID  string     `json:"api_app_id"`
	Event     SlackEvent `json:"event"`
	Type      string     `json:"type"` // "event_callback", "url_verification"
	EventID   string     `json:"event_id"`
	EventTime int64      `json:"event_time"`
	Challenge string     `json:"challenge,omitempty"` // URL検証時のみ
}

// SlackEvent は app_mention イベントを表します
type SlackEvent struct {
	Type      string          `json:"type"`                // "app_mention" など
	User      string          `json:"user"`                // イベント発生者（メッセージ送信者）
	Text      string          `json:"text"`                // メッセージ本文（メンション込み）
	Channel   string          `json:"channel"`             // チャンネルID
	Timestamp string          `json:"ts"`                  // メッセージTS（返信先スレッド）
	ThreadTs  string          `json:"thread_ts,omitempty"` // スレッドTS（スレッド内の場合）
	Blocks    json.RawMessage `json:"blocks,omitempty"`    // rich_text ブロック
}

// mentionTextPath は rich_text ブロック内のユーザー入力テキストの位置です
// elements[0] がボットへのメンション、elements[1] が続くテキストという前提です
const mentionTextPath = "0.elements.0.elements.1.text"

// MentionText はメンションに続くユーザー入力テキストの抽出結果です
type MentionText struct {
	Value string
	OK    bool
}

// MentionText はブロックからメンションに続くテキストを取り出します
// ブロックの形が想定と異なる場合はエラーにせず OK=false を返します
func (e SlackEvent) MentionText() MentionText {
	if len(e.Blocks) == 0 {
		return MentionText{}
	}
	res := gjson.GetBytes(e.Blocks, mentionTextPath)
	if res.Type != gjson.String || res.Str == "" {
		return MentionText{}
	}
	return MentionText{Value: res.Str, OK: true}
}
