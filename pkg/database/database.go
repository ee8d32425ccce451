// Package database はSQLiteとPostgreSQLの両方で動作するデータベース接続を提供する。
//
// クエリは ? プレースホルダで記述し、PostgreSQL接続時は $1, $2, ... に書き換える。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	// PostgreSQLドライバ。
	"github.com/lib/pq"
	// SQLiteドライバ（cgo不要）。
	"modernc.org/sqlite"
)

// Dialect はSQL方言を表す。
type Dialect string

const (
	// DialectSQLite はSQLite方言。
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres はPostgreSQL方言。
	DialectPostgres Dialect = "postgres"
)

// DB はプレースホルダを方言に合わせて書き換えるsql.DBのラッパー。
// sqlcスタイルのクエリパッケージが要求するDBTXインターフェースを満たす。
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open はDSNからデータベースに接続する。
// postgres:// または postgresql:// で始まるDSNはPostgreSQL、それ以外はSQLiteのパスとして扱う。
func Open(dsn string) (*DB, error) {
	dialect, driverDSN := parseDSN(dsn)

	sqlDB, err := sql.Open(string(dialect), driverDSN)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLiteは単一ライターのため、書き込み競合を避ける。
		sqlDB.SetMaxOpenConns(1)
	}
	return &DB{DB: sqlDB, dialect: dialect}, nil
}

// parseDSN はDSNから方言とドライバに渡す接続文字列を決定する。
func parseDSN(dsn string) (Dialect, string) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres, dsn
	}
	if dsn == ":memory:" {
		return DialectSQLite, ":memory:?_pragma=foreign_keys(1)"
	}
	if strings.Contains(dsn, "?") {
		return DialectSQLite, dsn
	}
	return DialectSQLite, dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Dialect は接続先の方言を返す。
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// ExecContext はプレースホルダを書き換えてからクエリを実行する。
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, Rebind(db.dialect, query), args...)
}

// QueryContext はプレースホルダを書き換えてから行を取得する。
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, Rebind(db.dialect, query), args...)
}

// QueryRowContext はプレースホルダを書き換えてから1行を取得する。
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, Rebind(db.dialect, query), args...)
}

// Tx はプレースホルダを書き換えるsql.Txのラッパー。
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// ExecContext はトランザクション内でクエリを実行する。
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, Rebind(tx.dialect, query), args...)
}

// QueryContext はトランザクション内で行を取得する。
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, Rebind(tx.dialect, query), args...)
}

// QueryRowContext はトランザクション内で1行を取得する。
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, Rebind(tx.dialect, query), args...)
}

// InTx は関数をトランザクション内で実行する。
// fnがエラーを返した場合はロールバックし、それ以外はコミットする。
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(&Tx{Tx: sqlTx, dialect: db.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// Rebind は ? プレースホルダを方言に合わせて書き換える。
// 文字列リテラル内の ? は書き換えない。
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

const (
	// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
	pgUniqueViolation = "23505"
	// sqliteConstraintPrimaryKey と sqliteConstraintUnique はSQLiteの拡張結果コード。
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsUniqueViolation はエラーが一意制約違反かどうかを判定する。
// 事前の存在確認と挿入の間に別リクエストが割り込んだ場合の検出に使う。
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
