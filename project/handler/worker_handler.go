package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"slack-relay/project/service"
)

// WorkerHandler はディスパッチャーから呼び出されるワーカーのエンドポイントです
type WorkerHandler struct {
	worker service.Worker
}

// NewWorkerHandler はワーカーハンドラーを作成します
func NewWorkerHandler(worker service.Worker) *WorkerHandler {
	return &WorkerHandler{
		worker: worker,
	}
}

// ServeHTTP は /workers/async, /workers/sync エンドポイント
func (h *WorkerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// リクエスト本体を読み込む
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Str("worker", h.worker.Name()).Msg("リクエスト本体の読み込み失敗")
		writeResponse(w, service.Response{StatusCode: http.StatusOK})
		return
	}
	defer r.Body.Close()

	var payload service.DispatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		// Cloud Tasks 側へは 200 で応答（再試行回避）
		log.Error().Err(err).Str("worker", h.worker.Name()).Msg("ペイロード JSON パース失敗")
		writeResponse(w, service.Response{StatusCode: http.StatusOK})
		return
	}

	// ディスパッチャー側が切断しても返信投稿は最後まで行う
	ctx := context.WithoutCancel(r.Context())

	writeResponse(w, h.worker.Handle(ctx, &payload))
}

// writeResponse は Response を JSON として書き込みます
func writeResponse(w http.ResponseWriter, resp service.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(resp.StatusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(b)
}
