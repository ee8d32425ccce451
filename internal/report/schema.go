package report

import (
	"context"
	"embed"

	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/migration"
)

// Migrations は発見報告サービスのマイグレーションファイル。
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir はMigrations内のマイグレーションディレクトリ。
const MigrationsDir = "migrations"

// Migrate は発見報告サービスのスキーマを最新にする。
func Migrate(ctx context.Context, db *database.DB) error {
	return migration.Run(ctx, db, Migrations, MigrationsDir)
}
