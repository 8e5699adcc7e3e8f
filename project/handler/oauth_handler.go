package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"slack-relay/project/domain"
)

// OAuthExchanger は OAuth code を Bot トークンに交換するポートです
type OAuthExchanger interface {
	ExchangeOAuthCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*domain.Installation, error)
}

// OAuthConfig は OAuth フローの設定値です
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuthHandler は Slack OAuth フロー（インストール完了）を処理します
type OAuthHandler struct {
	cfg       OAuthConfig
	ir        domain.InstallationRepository
	exchanger OAuthExchanger
}

// NewOAuthHandler は OAuth ハンドラーを作成します
func NewOAuthHandler(cfg OAuthConfig, ir domain.InstallationRepository, exchanger OAuthExchanger) *OAuthHandler {
	return &OAuthHandler{
		cfg:       cfg,
		ir:        ir,
		exchanger: exchanger,
	}
}

// ServeHTTP は OAuth コールバック処理 (/slack/oauth_redirect)
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// クエリパラメータから code を取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code parameter is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	inst, err := h.exchanger.ExchangeOAuthCode(ctx, h.cfg.ClientID, h.cfg.ClientSecret, code, h.cfg.RedirectURL)
	if err != nil {
		log.Error().Err(err).Msg("OAuth トークン交換失敗")
		http.Error(w, fmt.Sprintf("token exchange failed: %v", err), http.StatusBadRequest)
		return
	}

	// インストール情報として登録
	if err := h.ir.Put(ctx, inst); err != nil {
		log.Error().Err(err).Str("app_id", inst.AppID).Str("team_id", inst.TeamID).Msg("インストール情報保存失敗")
		http.Error(w, "failed to save installation", http.StatusInternalServerError)
		return
	}

	log.Info().Str("app_id", inst.AppID).Str("team_id", inst.TeamID).Msg("インストールを登録しました")

	// インストール成功画面を表示
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`
<!DOCTYPE html>
<html>
<head>
    <title>Installed</title>
    <style>
        body { font-family: sans-serif; margin: 40px; }
        .success { color: green; font-size: 18px; font-weight: bold; }
    </style>
</head>
<body>
    <div class="success">✓ The Slack app has been installed.</div>
    <p>Mention the app in an allowed channel to get started.</p>
</body>
</html>
	`))
}
