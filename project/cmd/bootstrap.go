package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"slack-relay/project/domain"
	"slack-relay/project/infrastructure/store"
)

func newBootstrapCmd() *cobra.Command {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("FS_COLLECTION_INSTALLATIONS", "installations")

	c := &cobra.Command{
		Use:   "bootstrap-token",
		Short: "オーナーワークスペースの Bot トークンを登録します",
		Long: `自分のワークスペースにインストールしたアプリの Bot トークンを
インストール情報として Firestore に書き込み、読み戻して表示します。
トークンは --bot-token または環境変数 BOT_TOKEN で指定します。`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags(), bootstrapFlagKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrapToken(cmd, v)
		},
	}

	flags := c.Flags()
	flags.String("bot-token", "", "Bot トークン (xoxb-...)")
	flags.String("app-id", "", "Slack アプリ ID (既定: SLACK_APP_ID)")
	flags.String("team-id", "", "Slack ワークスペース ID")
	flags.String("project", "", "Firestore のプロジェクト ID (既定: FIRESTORE_PROJECT_ID または GCP_PROJECT)")
	flags.String("collection", "", "インストール情報のコレクション名")

	return c
}

// bootstrapFlagKeys は設定キーと対応するフラグ名です
var bootstrapFlagKeys = map[string]string{
	"BOT_TOKEN":                   "bot-token",
	"SLACK_APP_ID":                "app-id",
	"TEAM_ID":                     "team-id",
	"FIRESTORE_PROJECT_ID":        "project",
	"FS_COLLECTION_INSTALLATIONS": "collection",
}

// bindFlags はフラグを viper の設定キーに結び付けます
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bootstrap: フラグ %s の設定失敗: %w", name, err)
		}
	}
	return nil
}

func bootstrapToken(cmd *cobra.Command, v *viper.Viper) error {
	setupLogger(zerolog.InfoLevel, true)
	ctx := cmd.Context()

	projectID := v.GetString("FIRESTORE_PROJECT_ID")
	if projectID == "" {
		projectID = v.GetString("GCP_PROJECT")
	}
	if projectID == "" {
		return fmt.Errorf("bootstrap: --project または GCP_PROJECT を指定してください")
	}

	inst := &domain.Installation{
		AppID:       v.GetString("SLACK_APP_ID"),
		TeamID:      v.GetString("TEAM_ID"),
		AccessToken: v.GetString("BOT_TOKEN"),
		RequestUTC:  time.Now().UTC(),
	}
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	repo, err := store.NewFirestoreRepo(ctx, projectID, v.GetString("FS_COLLECTION_INSTALLATIONS"))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer repo.Close()

	if err := repo.Put(ctx, inst); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	saved, err := repo.Get(ctx, inst.AppID, inst.TeamID)
	if err != nil {
		return fmt.Errorf("bootstrap: 書き込み後の読み込み失敗: %w", err)
	}

	log.Info().
		Str("app_id", saved.AppID).
		Str("team_id", saved.TeamID).
		Time("request_utc", saved.RequestUTC).
		Msg("インストール情報を登録しました")

	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s request_utc=%s\n",
		saved.AppID, saved.TeamID, saved.RequestUTC.Format(time.RFC3339))
	return nil
}
