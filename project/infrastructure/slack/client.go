package slack

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"slack-relay/project/domain"
)

// SlackClient は service.ChatPort の Slack SDK 実装です
// Bot トークンはインストールごとに異なるため、投稿のたびに API クライアントを作成します
type SlackClient struct {
	apiURL     string
	httpClient *http.Client
}

// NewSlackClient は Slack クライアントを初期化します
// apiURL が空の場合は Slack の既定エンドポイントを使います
func NewSlackClient(apiURL string) *SlackClient {
	return &SlackClient{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// api は指定トークンの Slack API クライアントを作成します
func (sc *SlackClient) api(token string) *slack.Client {
	opts := []slack.Option{slack.OptionHTTPClient(sc.httpClient)}
	if sc.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(sc.apiURL))
	}
	return slack.New(token, opts...)
}

// PostThreadMessage はスレッドにメッセージを投稿します
func (sc *SlackClient) PostThreadMessage(ctx context.Context, token, channelID, threadTS, text string) error {
	_, _, err := sc.api(token).PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("slack: スレッドメッセージ投稿失敗 (channel=%s, ts=%s): %w", channelID, threadTS, err)
	}

	return nil
}

// ExchangeOAuthCode は OAuth code を Bot トークンに交換し、インストール情報を返します
func (sc *SlackClient) ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*domain.Installation, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, sc.httpClient, clientID, clientSecret, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("slack: トークン交換失敗: %w", err)
	}

	return &domain.Installation{
		AppID:       resp.AppID,
		TeamID:      resp.Team.ID,
		AccessToken: resp.AccessToken,
		RequestUTC:  time.Now().UTC(),
	}, nil
}
