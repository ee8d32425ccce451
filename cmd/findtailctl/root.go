package main

import (
	"github.com/nao1215/findtail/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRootCommand はfindtailctlのルートコマンドを生成する。
func newRootCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "findtailctl",
		Short: "FindTailの運用コマンド",
		Long: `findtailctlはFindTailの各サービスを運用するためのコマンドです。
データベースのマイグレーションと、動作確認用のJWT発行を行います。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log, err := logger.New("findtailctl", logLevel)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(log)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newTokenCommand())
	return cmd
}
