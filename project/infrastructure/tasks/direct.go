package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/api/idtoken"

	"slack-relay/project/service"
)

// DirectClient は service.InvokerPort の HTTP 実装です（同期ワーカー用）
// ワーカーの処理完了まで待ち、ワーカーの HTTP ステータスを返します
type DirectClient struct {
	targetURL  string
	httpClient *http.Client
}

// NewDirectClient は同期呼び出しクライアントを作成します
// audience が設定されている場合は ID トークン付きの HTTP クライアントを使います
func NewDirectClient(ctx context.Context, targetURL, audience string) (*DirectClient, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if audience != "" {
		c, err := idtoken.NewClient(ctx, audience)
		if err != nil {
			return nil, fmt.Errorf("direct: ID トークンクライアント初期化失敗: %w", err)
		}
		c.Timeout = 30 * time.Second
		httpClient = c
	}

	return &DirectClient{
		targetURL:  targetURL,
		httpClient: httpClient,
	}, nil
}

// Invoke はワーカーにペイロードを POST し、応答を待ちます
func (dc *DirectClient) Invoke(ctx context.Context, payload *service.DispatchPayload) (int, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("direct: ペイロード JSON 化失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dc.targetURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return 0, fmt.Errorf("direct: リクエスト作成失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("direct: リクエスト送信失敗 (url=%s): %w", dc.targetURL, err)
	}
	defer resp.Body.Close()

	// 接続再利用のため本文は読み捨てる
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Close はアイドル接続を閉じます
func (dc *DirectClient) Close() error {
	dc.httpClient.CloseIdleConnections()
	return nil
}
