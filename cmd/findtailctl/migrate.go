package main

import (
	"embed"
	"fmt"
	"slices"
	"strings"

	"github.com/nao1215/findtail/internal/animal"
	"github.com/nao1215/findtail/internal/donation"
	"github.com/nao1215/findtail/internal/gateway"
	"github.com/nao1215/findtail/internal/messaging"
	"github.com/nao1215/findtail/internal/report"
	"github.com/nao1215/findtail/internal/shelter"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/migration"
	"github.com/spf13/cobra"
)

// migrationSource はサービスに埋め込まれたマイグレーションファイル。
type migrationSource struct {
	fsys embed.FS
	dir  string
}

var migrationSources = map[string]migrationSource{
	config.ServiceGateway:   {fsys: gateway.Migrations, dir: gateway.MigrationsDir},
	config.ServiceShelter:   {fsys: shelter.Migrations, dir: shelter.MigrationsDir},
	config.ServiceAnimal:    {fsys: animal.Migrations, dir: animal.MigrationsDir},
	config.ServiceReport:    {fsys: report.Migrations, dir: report.MigrationsDir},
	config.ServiceDonation:  {fsys: donation.Migrations, dir: donation.MigrationsDir},
	config.ServiceMessaging: {fsys: messaging.Migrations, dir: messaging.MigrationsDir},
}

// serviceNames はマイグレーションを持つサービス名をソートして返す。
func serviceNames() []string {
	names := make([]string, 0, len(migrationSources))
	for name := range migrationSources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// openServiceDB はサービスのマイグレーションとデータベース接続を返す。
// dsnが空の場合はサービスの設定（環境変数・設定ファイル）の接続先を使う。
func openServiceDB(service, dsn string) (migrationSource, *database.DB, error) {
	src, ok := migrationSources[service]
	if !ok {
		return migrationSource{}, nil, fmt.Errorf("不明なサービスです: %s（%s のいずれかを指定してください）",
			service, strings.Join(serviceNames(), ", "))
	}

	if dsn == "" {
		cfg, err := config.Load(service)
		if err != nil {
			return migrationSource{}, nil, err
		}
		dsn = cfg.DatabaseURL
	}

	db, err := database.Open(dsn)
	if err != nil {
		return migrationSource{}, nil, err
	}
	return src, db, nil
}

// newMigrateCommand はmigrateコマンドを生成する。
func newMigrateCommand() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate <service>",
		Short: "サービスのデータベースにマイグレーションを適用する",
		Long: `指定したサービスに埋め込まれたマイグレーションのうち、未適用のものを順に適用します。
--dsn を省略した場合はサービスの設定（DATABASE_URL など）の接続先を使います。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, db, err := openServiceDB(args[0], dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migration.Run(cmd.Context(), db, src.fsys, src.dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s のマイグレーションが完了しました\n", args[0])
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "接続先（SQLiteのパスまたはpostgres://で始まるDSN）")

	cmd.AddCommand(newMigrateStatusCommand(&dsn))
	return cmd
}

// newMigrateStatusCommand はmigrate statusコマンドを生成する。
func newMigrateStatusCommand(dsn *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <service>",
		Short: "マイグレーションの適用状態を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, db, err := openServiceDB(args[0], *dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := migration.Status(cmd.Context(), db, src.fsys, src.dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range versions {
				state := "pending"
				if v.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%06d %-20s %s\n", v.Version, v.Name, state)
			}
			return nil
		},
	}
}
