package db

import (
	"context"
	"time"
)

const notificationColumns = `id, user_id, kind, title, message, link, is_read, created_at`

func scanNotification(row rowScanner) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Kind,
		&i.Title,
		&i.Message,
		&i.Link,
		&i.IsRead,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryNotifications(ctx context.Context, query string, args ...any) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Notification
	for rows.Next() {
		i, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createNotification = `
INSERT INTO notifications (id, user_id, kind, title, message, link, is_read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateNotificationParams はCreateNotificationの引数。
type CreateNotificationParams struct {
	ID      string
	UserID  string
	Kind    string
	Title   string
	Message string
	Link    string
	// IsRead は作成時点の既読状態。通常はfalse。
	IsRead bool
	// CreatedAt が空の場合は現在時刻を使用する。
	CreatedAt time.Time
}

// CreateNotification は通知を保存して返す。
func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	createdAt := arg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()

	if _, err := q.db.ExecContext(ctx, createNotification,
		arg.ID,
		arg.UserID,
		arg.Kind,
		arg.Title,
		arg.Message,
		arg.Link,
		boolToInt(arg.IsRead),
		createdAt,
	); err != nil {
		return Notification{}, err
	}
	return Notification{
		ID:        arg.ID,
		UserID:    arg.UserID,
		Kind:      arg.Kind,
		Title:     arg.Title,
		Message:   arg.Message,
		Link:      arg.Link,
		IsRead:    arg.IsRead,
		CreatedAt: createdAt,
	}, nil
}

const getNotificationByID = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

// GetNotificationByID はIDで通知を取得する。
func (q *Queries) GetNotificationByID(ctx context.Context, id string) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotificationByID, id))
}

const listNotificationsByUser = `SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ? ORDER BY created_at DESC, id`

// ListNotificationsByUser はユーザーの通知を新しい順に返す。
func (q *Queries) ListNotificationsByUser(ctx context.Context, userID string) ([]Notification, error) {
	return q.queryNotifications(ctx, listNotificationsByUser, userID)
}

const listUnreadNotifications = `SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = ? AND is_read = 0 ORDER BY created_at DESC, id`

// ListUnreadNotifications はユーザーの未読通知を新しい順に返す。
func (q *Queries) ListUnreadNotifications(ctx context.Context, userID string) ([]Notification, error) {
	return q.queryNotifications(ctx, listUnreadNotifications, userID)
}

const markNotificationRead = `UPDATE notifications SET is_read = 1 WHERE id = ? AND is_read = 0`

// MarkNotificationRead は通知を既読にし、更新件数を返す。
func (q *Queries) MarkNotificationRead(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markNotificationRead, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markAllNotificationsRead = `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`

// MarkAllNotificationsRead はユーザーの全通知を既読にし、更新件数を返す。
func (q *Queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markAllNotificationsRead, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countUnreadNotifications = `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`

// CountUnreadNotifications はユーザーの未読通知数を返す。
func (q *Queries) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnreadNotifications, userID).Scan(&count)
	return count, err
}

const deleteReadNotificationsBefore = `DELETE FROM notifications WHERE is_read = 1 AND created_at < ?`

// DeleteReadNotificationsBefore は指定時刻より前に作成された既読通知を削除し、削除件数を返す。
func (q *Queries) DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReadNotificationsBefore, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
