package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"slack-relay/project/service"
)

// EventsHandler は Slack Events API からのイベントを処理します
type EventsHandler struct {
	dispatcher service.Dispatcher
}

// NewEventsHandler はイベントハンドラーを作成します
func NewEventsHandler(dispatcher service.Dispatcher) *EventsHandler {
	return &EventsHandler{
		dispatcher: dispatcher,
	}
}

// ServeHTTP は Slack イベント受信エンドポイントです
// Slack への応答は常に 200 で、URL 検証時のみ challenge を本文に返します
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("リクエスト本体の読み込み失敗")
		w.WriteHeader(http.StatusOK)
		return
	}
	defer r.Body.Close()

	log.Debug().Int("bytes", len(body)).Msg("webhook を受信しました")

	// 呼び出し元の切断で返信が中断されないよう、キャンセルを切り離す
	// 処理時間の上限はプラットフォーム側のリクエスト期限に任せる
	ctx := context.WithoutCancel(r.Context())

	resp := h.dispatcher.Dispatch(ctx, &service.Inbound{Header: r.Header, Body: body})

	log.Info().Int("status", resp.StatusCode).Bool("has_body", resp.Body != "").Msg("即時応答を返します")

	if resp.Body != "" {
		w.Header().Set("Content-Type", "text/plain")
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}
