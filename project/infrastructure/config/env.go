package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"slack-relay/project/domain"
)

// DispatchMode はディスパッチャーがワーカーを呼び出す方式です
type DispatchMode string

const (
	// DispatchAsync は Cloud Tasks 経由で非同期ワーカーを呼び出します（応答を待たない）
	DispatchAsync DispatchMode = "async"
	// DispatchSync は同期ワーカーを HTTP で呼び出し、完了まで待ちます
	DispatchSync DispatchMode = "sync"
)

// Config は環境変数から読み込まれるアプリケーション設定を表します
type Config struct {
	// 基本設定
	GcpProject string
	Region     string
	Port       string
	LogLevel   zerolog.Level
	LocalMode  bool // true の場合は認証と Slack 投稿をスキップ

	// Slack 設定
	SlackAppID                   string
	SlackChannelIDs              []string
	SlackTeamIDs                 []string
	SlackVerificationTokenSecret string // Secret Manager のシークレット名
	SlackSigningSecretName       string // 任意: 署名検証用シークレット名
	SlackAPIURL                  string // 任意: chat.postMessage の送信先を差し替え

	// Firestore 設定
	FirestoreProjectID      string
	CollectionInstallations string

	// ワーカー呼び出し設定
	DispatchMode        DispatchMode
	AsyncWorkerURL      string
	SyncWorkerURL       string
	TasksQueueAsync     string
	TasksServiceAccount string
	TasksAudience       string
	WorkerAudience      string

	// OAuth 設定
	OAuthRedirectURL        string
	SlackClientIDSecret     string
	SlackClientSecretSecret string
}

// AllowList は設定から許可リストを構築します
func (c *Config) AllowList() domain.AllowList {
	return domain.NewAllowList(c.SlackAppID, c.SlackTeamIDs, c.SlackChannelIDs)
}

// UseCloudTasks は非同期呼び出しに Cloud Tasks を使うかどうかを返します
func (c *Config) UseCloudTasks() bool {
	return c.TasksQueueAsync != ""
}

// NewConfig は環境変数から設定を読み込み、Config構造体を返します
// 必須項目が欠けている場合は、欠けているキーをまとめてエラーにします
func NewConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("REGION", "australia-southeast1")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOCAL_MODE", false)
	v.SetDefault("FS_COLLECTION_INSTALLATIONS", "installations")
	v.SetDefault("DISPATCH_MODE", string(DispatchAsync))
	v.SetDefault("SLACK_CLIENT_ID_SECRET", "slack-client-id")
	v.SetDefault("SLACK_CLIENT_SECRET_SECRET", "slack-client-secret")

	r := &envReader{v: v}

	gcpProject := r.required("GCP_PROJECT")

	firestoreProject := v.GetString("FIRESTORE_PROJECT_ID")
	if firestoreProject == "" {
		firestoreProject = gcpProject
	}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	mode := DispatchMode(strings.ToLower(v.GetString("DISPATCH_MODE")))
	if mode != DispatchAsync && mode != DispatchSync {
		return nil, fmt.Errorf("invalid DISPATCH_MODE: %q", mode)
	}

	cfg := &Config{
		GcpProject: gcpProject,
		Region:     v.GetString("REGION"),
		Port:       v.GetString("PORT"),
		LogLevel:   logLevel,
		LocalMode:  v.GetBool("LOCAL_MODE"),

		SlackAppID:                   r.required("SLACK_APP_ID"),
		SlackChannelIDs:              domain.SplitIDs(r.required("SLACK_CHANNEL_IDS")),
		SlackTeamIDs:                 domain.SplitIDs(r.required("SLACK_TEAM_IDS")),
		SlackVerificationTokenSecret: r.required("SLACK_VERIFICATION_TOKEN_SECRET"),
		SlackSigningSecretName:       v.GetString("SLACK_SIGNING_SECRET_NAME"),
		SlackAPIURL:                  v.GetString("SLACK_API_URL"),

		FirestoreProjectID:      firestoreProject,
		CollectionInstallations: v.GetString("FS_COLLECTION_INSTALLATIONS"),

		DispatchMode:        mode,
		AsyncWorkerURL:      strings.TrimSpace(v.GetString("ASYNC_WORKER_URL")),
		SyncWorkerURL:       strings.TrimSpace(v.GetString("SYNC_WORKER_URL")),
		TasksQueueAsync:     v.GetString("TASKS_QUEUE_ASYNC"),
		TasksServiceAccount: v.GetString("TASKS_SERVICE_ACCOUNT"),
		TasksAudience:       v.GetString("TASKS_AUDIENCE"),
		WorkerAudience:      v.GetString("WORKER_AUDIENCE"),

		OAuthRedirectURL:        v.GetString("OAUTH_REDIRECT_URL"),
		SlackClientIDSecret:     v.GetString("SLACK_CLIENT_ID_SECRET"),
		SlackClientSecretSecret: v.GetString("SLACK_CLIENT_SECRET_SECRET"),
	}

	// 呼び出し先の URL は選択したモードで使う方だけを必須とする
	switch mode {
	case DispatchSync:
		r.required("SYNC_WORKER_URL")
	default:
		r.required("ASYNC_WORKER_URL")
	}

	if len(r.missingKeys) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(r.missingKeys, ", "))
	}

	return cfg, nil
}

// envReader は必須キーの欠落を記録しながら値を読み込みます
type envReader struct {
	v           *viper.Viper
	missingKeys []string
}

func (r *envReader) required(key string) string {
	value := strings.TrimSpace(r.v.GetString(key))
	if value == "" {
		r.missingKeys = append(r.missingKeys, key)
	}
	return value
}
