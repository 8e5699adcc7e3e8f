package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"slack-relay/project/domain"
)

const (
	// AsyncWorkerName は非同期ワーカーの名前です
	AsyncWorkerName = "AsyncWorker"
	// SyncWorkerName は同期ワーカーの名前です
	SyncWorkerName = "SyncWorker"
)

// Worker はディスパッチされたジョブを処理し、Slack に返信するサービスです
type Worker interface {
	// Name はワーカー名を返します
	Name() string

	// Handle はジョブを処理します。投稿の成否にかかわらず 200 応答を返します
	Handle(ctx context.Context, p *DispatchPayload) Response
}

// worker は Worker の実装です
type worker struct {
	name string
	ir   domain.InstallationRepository
	chat ChatPort
}

// NewWorker は Worker のインスタンスを作成します
func NewWorker(name string, ir domain.InstallationRepository, chat ChatPort) Worker {
	return &worker{
		name: name,
		ir:   ir,
		chat: chat,
	}
}

func (w *worker) Name() string {
	return w.name
}

// Handle は受け取ったテキストを復唱するメッセージをスレッドに投稿します
func (w *worker) Handle(ctx context.Context, p *DispatchPayload) Response {
	logger := log.With().
		Str("worker", w.name).
		Str("team_id", p.TeamID).
		Str("channel_id", p.ChannelID).
		Str("user_id", p.UserID).
		Logger()

	message := fmt.Sprintf("%s: <@%s> said `%s`", w.name, p.UserID, p.Text)
	logger.Info().Msg(message)

	// トークンが取得できなくても投稿は試みる（Slack 側で失敗する）
	botToken := lookupBotToken(ctx, w.ir, p.AppID, p.TeamID)

	if err := w.chat.PostThreadMessage(ctx, botToken, p.ChannelID, p.TS, message); err != nil {
		logger.Error().Err(err).Msg("返信投稿失敗")
	} else {
		logger.Info().Msg("返信投稿完了")
	}

	return newResponse("")
}
