// Package db は動物サービスのクエリを提供する。
package db

import (
	"context"
	"database/sql"
)

// DBTX はQueriesが使用するデータベース操作のインターフェース。
// *database.DB と *database.Tx の両方が満たす。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New はクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries は動物関連テーブルに対するクエリをまとめたもの。
type Queries struct {
	db DBTX
}

// WithTx はトランザクション上でクエリを実行するQueriesを返す。
func (q *Queries) WithTx(tx DBTX) *Queries {
	return &Queries{db: tx}
}
