package db

import (
	"context"
	"time"
)

const messageColumns = `id, sender_id, recipient_id, animal_id, body, is_read, created_at`

func scanMessage(row rowScanner) (Message, error) {
	var i Message
	err := row.Scan(
		&i.ID,
		&i.SenderID,
		&i.RecipientID,
		&i.AnimalID,
		&i.Body,
		&i.IsRead,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		i, err := scanMessage(rows)
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

const createMessage = `
INSERT INTO messages (id, sender_id, recipient_id, animal_id, body, is_read, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)
`

// CreateMessageParams はCreateMessageの引数。
type CreateMessageParams struct {
	ID          string
	SenderID    string
	RecipientID string
	AnimalID    string
	Body        string
}

// CreateMessage は未読のメッセージを保存して返す。
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	now := time.Now().UTC()
	if _, err := q.db.ExecContext(ctx, createMessage,
		arg.ID,
		arg.SenderID,
		arg.RecipientID,
		arg.AnimalID,
		arg.Body,
		now,
	); err != nil {
		return Message{}, err
	}
	return Message{
		ID:          arg.ID,
		SenderID:    arg.SenderID,
		RecipientID: arg.RecipientID,
		AnimalID:    arg.AnimalID,
		Body:        arg.Body,
		CreatedAt:   now,
	}, nil
}

const listMessagesForUser = `SELECT ` + messageColumns + ` FROM messages
WHERE sender_id = ? OR recipient_id = ?
ORDER BY created_at DESC, id`

// ListMessagesForUser はユーザーが送受信したメッセージを新しい順に返す。
func (q *Queries) ListMessagesForUser(ctx context.Context, userID string) ([]Message, error) {
	return q.queryMessages(ctx, listMessagesForUser, userID, userID)
}

const listThread = `SELECT ` + messageColumns + ` FROM messages
WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
ORDER BY created_at, id`

// ListThread は2人のユーザー間のメッセージを古い順に返す。
func (q *Queries) ListThread(ctx context.Context, userID, counterpartID string) ([]Message, error) {
	return q.queryMessages(ctx, listThread, userID, counterpartID, counterpartID, userID)
}

const markThreadRead = `
UPDATE messages SET is_read = 1
WHERE recipient_id = ? AND sender_id = ? AND is_read = 0
`

// MarkThreadRead は相手からユーザー宛ての未読メッセージを既読にし、更新件数を返す。
func (q *Queries) MarkThreadRead(ctx context.Context, userID, counterpartID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markThreadRead, userID, counterpartID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countUnreadMessages = `SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND is_read = 0`

// CountUnreadMessages はユーザー宛ての未読メッセージ数を返す。
func (q *Queries) CountUnreadMessages(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnreadMessages, userID).Scan(&count)
	return count, err
}
