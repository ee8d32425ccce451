package db

import (
	"context"
	"strings"
	"time"
)

const profileColumns = `id, email, password_hash, role, display_name, phone, city, avatar_url, created_at, updated_at, last_login_at`

func scanProfile(row rowScanner) (Profile, error) {
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.Role,
		&i.DisplayName,
		&i.Phone,
		&i.City,
		&i.AvatarURL,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.LastLoginAt,
	)
	return i, err
}

const createProfile = `
INSERT INTO profiles (id, email, password_hash, role, display_name, phone, city, avatar_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateProfileParams はCreateProfileの引数。
type CreateProfileParams struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	DisplayName  string
	Phone        string
	City         string
}

// CreateProfile はプロフィールを作成する。
func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) error {
	now := time.Now().UTC()
	_, err := q.db.ExecContext(ctx, createProfile,
		arg.ID,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
		arg.DisplayName,
		arg.Phone,
		arg.City,
		"",
		now,
		now,
	)
	return err
}

const getProfileByID = `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`

// GetProfileByID はIDでプロフィールを取得する。
func (q *Queries) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	return scanProfile(q.db.QueryRowContext(ctx, getProfileByID, id))
}

const getProfileByEmail = `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?`

// GetProfileByEmail はメールアドレスでプロフィールを取得する。
// メールアドレスは小文字に正規化して保存されている前提。
func (q *Queries) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(q.db.QueryRowContext(ctx, getProfileByEmail, email))
}

// ListProfilesByIDs は指定したIDのプロフィールを返す。存在しないIDは無視する。
func (q *Queries) ListProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id IN (` + placeholders + `) ORDER BY id`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Profile
	for rows.Next() {
		i, err := scanProfile(rows)
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

const updateProfile = `
UPDATE profiles SET display_name = ?, phone = ?, city = ?, avatar_url = ?, updated_at = ?
WHERE id = ?
`

// UpdateProfileParams はUpdateProfileの引数。
type UpdateProfileParams struct {
	ID          string
	DisplayName string
	Phone       string
	City        string
	AvatarURL   string
}

// UpdateProfile はプロフィールの編集可能な項目を更新する。
func (q *Queries) UpdateProfile(ctx context.Context, arg UpdateProfileParams) error {
	_, err := q.db.ExecContext(ctx, updateProfile,
		arg.DisplayName,
		arg.Phone,
		arg.City,
		arg.AvatarURL,
		time.Now().UTC(),
		arg.ID,
	)
	return err
}

const updateLastLogin = `UPDATE profiles SET last_login_at = ? WHERE id = ?`

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (q *Queries) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, updateLastLogin, time.Now().UTC(), id)
	return err
}
