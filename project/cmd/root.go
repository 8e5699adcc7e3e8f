package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const executable = "slack-relay"

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   executable,
		Short: "Slack のメンションをワーカーへ中継するボット",
		Long: `Slack Events API の webhook を受け取り、検証したうえで
非同期ワーカー (Cloud Tasks) または同期ワーカー (HTTP) に処理を中継します。
ワーカーは受け取ったテキストをスレッドに返信します。`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
}

// Execute はサブコマンドを登録してルートコマンドを実行します
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	rootCmd := newRootCmd()
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newBootstrapCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("コマンド実行失敗")
		os.Exit(1)
	}
}

// setupLogger はログレベルと出力形式を設定します
func setupLogger(level zerolog.Level, console bool) {
	zerolog.SetGlobalLevel(level)
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
