package tasks

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"

	"slack-relay/project/service"
)

// BackgroundClient は Cloud Tasks を使わずにワーカーを非同期で呼び出す実装です
// キュー未設定のローカル実行向けで、呼び出しをゴルーチンに任せて即座に 202 を返します
type BackgroundClient struct {
	next    service.InvokerPort
	timeout time.Duration
}

// NewBackgroundClient は next をバックグラウンドで呼び出すクライアントを作成します
func NewBackgroundClient(next service.InvokerPort) *BackgroundClient {
	return &BackgroundClient{
		next:    next,
		timeout: 30 * time.Second,
	}
}

// Invoke はワーカー呼び出しを開始し、完了を待たずに返ります
// 呼び出し元のリクエストが終わってもキャンセルされないよう context は切り離します
func (bc *BackgroundClient) Invoke(ctx context.Context, payload *service.DispatchPayload) (int, error) {
	p := *payload
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("バックグラウンド呼び出しで panic が発生しました")
			}
		}()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bc.timeout)
		defer cancel()

		status, err := bc.next.Invoke(bgCtx, &p)
		if err != nil {
			log.Error().Err(err).Msg("バックグラウンド呼び出し失敗")
			return
		}
		log.Debug().Int("status", status).Msg("バックグラウンド呼び出し完了")
	}()

	return http.StatusAccepted, nil
}
