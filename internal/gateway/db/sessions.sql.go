package db

import (
	"context"
	"time"
)

const sessionColumns = `id, user_id, created_at, expires_at, revoked_at`

func scanSession(row rowScanner) (Session, error) {
	var i Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CreatedAt,
		&i.ExpiresAt,
		&i.RevokedAt,
	)
	return i, err
}

const createSession = `
INSERT INTO sessions (id, user_id, created_at, expires_at)
VALUES (?, ?, ?, ?)
`

// CreateSessionParams はCreateSessionの引数。
type CreateSessionParams struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// CreateSession はセッションを作成して返す。
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	now := time.Now().UTC()
	expiresAt := arg.ExpiresAt.UTC()
	if _, err := q.db.ExecContext(ctx, createSession, arg.ID, arg.UserID, now, expiresAt); err != nil {
		return Session{}, err
	}
	return Session{
		ID:        arg.ID,
		UserID:    arg.UserID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

const getSession = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

// GetSession はIDでセッションを取得する。
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, getSession, id))
}

const revokeSession = `UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`

// RevokeSession はセッションを失効させ、更新件数を返す。
func (q *Queries) RevokeSession(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, revokeSession, time.Now().UTC(), id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at < ?`

// DeleteExpiredSessions は期限切れのセッションを削除し、削除件数を返す。
func (q *Queries) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredSessions, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
