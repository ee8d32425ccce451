package db

import (
	"context"
	"time"
)

const createContactRequest = `
INSERT INTO contact_requests (id, name, email, subject, body, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateContactRequestParams はCreateContactRequestの引数。
type CreateContactRequestParams struct {
	ID      string
	Name    string
	Email   string
	Subject string
	Body    string
}

// CreateContactRequest は問い合わせを保存して返す。
func (q *Queries) CreateContactRequest(ctx context.Context, arg CreateContactRequestParams) (ContactRequest, error) {
	now := time.Now().UTC()
	if _, err := q.db.ExecContext(ctx, createContactRequest,
		arg.ID,
		arg.Name,
		arg.Email,
		arg.Subject,
		arg.Body,
		now,
	); err != nil {
		return ContactRequest{}, err
	}
	return ContactRequest{
		ID:        arg.ID,
		Name:      arg.Name,
		Email:     arg.Email,
		Subject:   arg.Subject,
		Body:      arg.Body,
		CreatedAt: now,
	}, nil
}

const countContactRequests = `SELECT COUNT(*) FROM contact_requests`

// CountContactRequests は保存されている問い合わせの件数を返す。
func (q *Queries) CountContactRequests(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countContactRequests).Scan(&count)
	return count, err
}
