package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"slack-relay/project/handler"
	"slack-relay/project/infrastructure/config"
	"slack-relay/project/infrastructure/secret"
	"slack-relay/project/infrastructure/slack"
	"slack-relay/project/infrastructure/store"
	"slack-relay/project/infrastructure/tasks"
	"slack-relay/project/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "HTTP サーバーを起動します",
		RunE:    serve,
	}
}

// invokerCloser はクローズが必要な呼び出しクライアントです
type invokerCloser interface {
	service.InvokerPort
	Close() error
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 設定を読み込む
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("設定読み込み失敗: %w", err)
	}
	setupLogger(cfg.LogLevel, cfg.LocalMode)

	// 2. 依存関係を初期化
	// Secret Manager
	secretMgr, err := secret.NewManager(ctx, cfg.GcpProject)
	if err != nil {
		return fmt.Errorf("Secret Manager 初期化失敗: %w", err)
	}
	defer secretMgr.Close()

	// Firestore リポジトリ
	repo, err := store.NewFirestoreRepo(ctx, cfg.FirestoreProjectID, cfg.CollectionInstallations)
	if err != nil {
		return fmt.Errorf("Firestore 初期化失敗: %w", err)
	}
	defer repo.Close()

	// Slack API ポート実装
	slackClient := slack.NewSlackClient(cfg.SlackAPIURL)

	// ワーカー呼び出しポート実装
	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return err
	}
	defer invoker.Close()

	// 3. サービス層を初期化
	dispatcher := service.NewDispatcher(service.DispatcherOptions{
		AllowList:               cfg.AllowList(),
		VerificationTokenSecret: cfg.SlackVerificationTokenSecret,
		SigningSecretName:       cfg.SlackSigningSecretName,
		LocalMode:               cfg.LocalMode,
	}, repo, secretMgr, slackClient, invoker)

	asyncWorker := service.NewWorker(service.AsyncWorkerName, repo, slackClient)
	syncWorker := service.NewWorker(service.SyncWorkerName, repo, slackClient)

	// 4. HTTP ハンドラーを設定
	mux := http.NewServeMux()

	// Slack イベント受信
	mux.Handle("/slack/events", handler.NewEventsHandler(dispatcher))

	// ディスパッチャーからの呼び出し
	mux.Handle("/workers/async", handler.NewWorkerHandler(asyncWorker))
	mux.Handle("/workers/sync", handler.NewWorkerHandler(syncWorker))

	// OAuth コールバック
	if cfg.OAuthRedirectURL != "" {
		oauthCfg, err := loadOAuthConfig(ctx, cfg, secretMgr)
		if err != nil {
			return err
		}
		mux.Handle("/slack/oauth_redirect", handler.NewOAuthHandler(oauthCfg, repo, slackClient))
	}

	// ヘルスチェック
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// 5. サーバー起動
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.WithRequestLog(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("dispatch_mode", string(cfg.DispatchMode)).
			Bool("local_mode", cfg.LocalMode).
			Msg("サーバー起動")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("サーバーエラー: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウン失敗: %w", err)
	}
	log.Info().Msg("サーバーを停止しました")
	return nil
}

// newInvoker は DISPATCH_MODE に応じたワーカー呼び出しクライアントを作成します
//   - sync: 同期ワーカーへ HTTP で直接呼び出し、完了を待つ
//   - async (キュー設定あり): Cloud Tasks にタスクを登録する
//   - async (キュー設定なし): バックグラウンドで非同期ワーカーを呼び出す
func newInvoker(ctx context.Context, cfg *config.Config) (invokerCloser, error) {
	if cfg.DispatchMode == config.DispatchSync {
		dc, err := tasks.NewDirectClient(ctx, cfg.SyncWorkerURL, cfg.WorkerAudience)
		if err != nil {
			return nil, fmt.Errorf("同期ワーカークライアント初期化失敗: %w", err)
		}
		return dc, nil
	}

	if cfg.UseCloudTasks() {
		ct, err := tasks.NewCloudTasksClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("Cloud Tasks クライアント初期化失敗: %w", err)
		}
		return ct, nil
	}

	log.Warn().Msg("TASKS_QUEUE_ASYNC が未設定のため、非同期ワーカーをプロセス内で呼び出します")
	dc, err := tasks.NewDirectClient(ctx, cfg.AsyncWorkerURL, cfg.WorkerAudience)
	if err != nil {
		return nil, fmt.Errorf("非同期ワーカークライアント初期化失敗: %w", err)
	}
	return &backgroundInvoker{BackgroundClient: tasks.NewBackgroundClient(dc), direct: dc}, nil
}

// backgroundInvoker は BackgroundClient と内部の DirectClient をまとめてクローズします
type backgroundInvoker struct {
	*tasks.BackgroundClient
	direct *tasks.DirectClient
}

func (b *backgroundInvoker) Close() error {
	return b.direct.Close()
}

// loadOAuthConfig は Secret Manager から OAuth クライアント情報を取得します
func loadOAuthConfig(ctx context.Context, cfg *config.Config, secrets *secret.Manager) (handler.OAuthConfig, error) {
	clientID, err := secrets.GetSecret(ctx, cfg.SlackClientIDSecret)
	if err != nil {
		return handler.OAuthConfig{}, fmt.Errorf("client_id 取得失敗: %w", err)
	}
	clientSecret, err := secrets.GetSecret(ctx, cfg.SlackClientSecretSecret)
	if err != nil {
		return handler.OAuthConfig{}, fmt.Errorf("client_secret 取得失敗: %w", err)
	}

	return handler.OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  cfg.OAuthRedirectURL,
	}, nil
}
