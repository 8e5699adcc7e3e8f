package httpsec

import (
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// VerifySlackSignature は Slack からのリクエストの署名を検証します
// X-Slack-Signature と X-Slack-Request-Timestamp ヘッダを確認し、
// 改ざんやリプレイ攻撃から保護します（タイムスタンプの許容幅は slack-go の既定値）
func VerifySlackSignature(signingSecret string, header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, signingSecret)
	if err != nil {
		return fmt.Errorf("httpsec: 署名ヘッダ不正: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return fmt.Errorf("httpsec: 署名計算失敗: %w", err)
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("httpsec: 署名不一致: %w", err)
	}
	return nil
}
