package service

import "context"

// ChatPort は Slack API 呼び出しのポートです
type ChatPort interface {
	// PostThreadMessage は token の Bot としてスレッドにメッセージを投稿します
	PostThreadMessage(ctx context.Context, token, channelID, threadTS, text string) error
}

// InvokerPort はワーカー呼び出しのポートです
type InvokerPort interface {
	// Invoke はワーカーにペイロードを送り、送信結果の HTTP ステータスを返します
	// 非同期実装は受付結果のみを返し、ワーカーの完了を待ちません
	Invoke(ctx context.Context, payload *DispatchPayload) (int, error)
}

// SecretPort はシークレット取得のポートです
type SecretPort interface {
	// GetSecret はシークレット名に対応する値を返します
	GetSecret(ctx context.Context, name string) (string, error)
}
