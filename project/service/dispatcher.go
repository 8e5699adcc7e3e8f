package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"slack-relay/project/domain"
	"slack-relay/project/dto"
	"slack-relay/project/infrastructure/httpsec"
)

const (
	msgAuthenticationError = "Sorry <@%s>, an authentication error occurred. Please contact your admin."
	msgNotSupported        = "Sorry <@%s>, this app does not support this %s."
	msgCannotProcess       = "<@%s>, your request (%s) cannot be processed at the moment. Please try again later."
	msgGreeting            = "Hello <@%s>!"
)

// Dispatcher は Slack webhook を検証し、ワーカーへ処理を振り分けるサービスです
type Dispatcher interface {
	// Dispatch は webhook を処理します
	// 結果にかかわらず常に 200 応答を返し、エラーは Slack への返信かログで通知します
	Dispatch(ctx context.Context, in *Inbound) Response
}

// DispatcherOptions はディスパッチャーの設定値です
type DispatcherOptions struct {
	// AllowList は許可されたアプリ・ワークスペース・チャンネル
	AllowList domain.AllowList

	// VerificationTokenSecret は検証トークンのシークレット名
	VerificationTokenSecret string

	// SigningSecretName は署名シークレット名（空の場合は署名検証しない）
	SigningSecretName string

	// LocalMode は認証と Slack 投稿をスキップするローカル実行モード
	LocalMode bool
}

// dispatcher は Dispatcher の実装です
type dispatcher struct {
	opts    DispatcherOptions
	ir      domain.InstallationRepository
	secrets SecretPort
	chat    ChatPort
	invoker InvokerPort
}

// NewDispatcher は Dispatcher のインスタンスを作成します
func NewDispatcher(
	opts DispatcherOptions,
	ir domain.InstallationRepository,
	secrets SecretPort,
	chat ChatPort,
	invoker InvokerPort,
) Dispatcher {
	return &dispatcher{
		opts:    opts,
		ir:      ir,
		secrets: secrets,
		chat:    chat,
		invoker: invoker,
	}
}

// Dispatch は webhook を処理します
func (d *dispatcher) Dispatch(ctx context.Context, in *Inbound) Response {
	var req dto.SlackEventRequest
	if err := json.Unmarshal(in.Body, &req); err != nil {
		log.Error().Err(err).Msg("webhook JSON パース失敗")
		return newResponse("")
	}

	// URL 検証（Event Subscriptions の Request URL 登録時のみ）
	if req.Challenge != "" {
		return newResponse(req.Challenge)
	}

	d.handleMention(ctx, in, &req)

	return newResponse("")
}

// handleMention は app_mention イベントを認証・認可し、ワーカーへ振り分けます
func (d *dispatcher) handleMention(ctx context.Context, in *Inbound, req *dto.SlackEventRequest) {
	ev := req.Event
	if ev.Channel == "" || ev.User == "" || ev.Timestamp == "" {
		log.Warn().Str("type", req.Type).Str("event_type", ev.Type).Msg("処理対象外のイベントです")
		return
	}

	logger := log.With().
		Str("app_id", req.APIAppID).
		Str("team_id", req.TeamID).
		Str("channel_id", ev.Channel).
		Str("user_id", ev.User).
		Logger()

	botToken := lookupBotToken(ctx, d.ir, req.APIAppID, req.TeamID)

	if !d.authenticate(ctx, in, req.Token) {
		d.reply(ctx, botToken, ev, fmt.Sprintf(msgAuthenticationError, ev.User))
		return
	}

	if reason := d.opts.AllowList.Authorize(req.APIAppID, req.TeamID, ev.Channel); reason != "" {
		logger.Warn().Str("reason", reason).Msg("認可エラー")
		d.reply(ctx, botToken, ev, fmt.Sprintf(msgNotSupported, ev.User, reason))
		return
	}

	text := ev.MentionText()
	logger.Info().Bool("has_text", text.OK).Str("text", text.Value).Msg("メンションを受信しました")

	if !text.OK {
		d.reply(ctx, botToken, ev, fmt.Sprintf(msgGreeting, ev.User))
		return
	}

	payload := &DispatchPayload{
		AppID:     req.APIAppID,
		ChannelID: ev.Channel,
		TeamID:    req.TeamID,
		Text:      text.Value,
		TS:        ev.Timestamp,
		UserID:    ev.User,
	}

	status, err := d.invoker.Invoke(ctx, payload)
	if err != nil || !isAccepted(status) {
		logger.Error().Err(err).Int("status", status).Msg("ワーカー呼び出し失敗")
		d.reply(ctx, botToken, ev, fmt.Sprintf(msgCannotProcess, ev.User, text.Value))
	}
}

// authenticate は検証トークン（と設定されていれば署名）を確認します
// シークレット取得に失敗した場合も認証失敗とします
func (d *dispatcher) authenticate(ctx context.Context, in *Inbound, token string) bool {
	if d.opts.LocalMode {
		return true
	}

	expected, err := d.secrets.GetSecret(ctx, d.opts.VerificationTokenSecret)
	if err != nil {
		log.Error().Err(err).Msg("検証トークンを取得できません")
		return false
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		log.Error().Msg("リクエストの検証トークンが一致しません")
		return false
	}

	if d.opts.SigningSecretName == "" {
		return true
	}

	signingSecret, err := d.secrets.GetSecret(ctx, d.opts.SigningSecretName)
	if err != nil {
		log.Error().Err(err).Msg("署名シークレットを取得できません")
		return false
	}

	if err := httpsec.VerifySlackSignature(signingSecret, in.Header, in.Body); err != nil {
		log.Error().Err(err).Msg("署名検証失敗")
		return false
	}

	return true
}

// reply はメンション元スレッドに返信します
// Bot トークンがない場合は投稿できないためログのみ残します
func (d *dispatcher) reply(ctx context.Context, botToken string, ev dto.SlackEvent, text string) {
	if d.opts.LocalMode {
		log.Info().Str("channel_id", ev.Channel).Str("text", text).Msg("ローカルモードのため投稿をスキップ")
		return
	}

	if botToken == "" {
		log.Warn().Str("channel_id", ev.Channel).Str("user_id", ev.User).Msg("Bot トークンがないため返信できません")
		return
	}

	// 呼び出し元のコンテキストが期限切れでも返信は送る
	if err := d.chat.PostThreadMessage(context.WithoutCancel(ctx), botToken, ev.Channel, ev.Timestamp, text); err != nil {
		log.Error().Err(err).Str("channel_id", ev.Channel).Msg("返信投稿失敗")
	}
}

// isAccepted はワーカー呼び出しが受け付けられたかを判定します
func isAccepted(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	}
	return false
}
