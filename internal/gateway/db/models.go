package db

import (
	"database/sql"
	"time"
)

// Profile はユーザーのプロフィール。
type Profile struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	DisplayName  string
	Phone        string
	City         string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  sql.NullTime
}

// Session はサインインごとに発行されるセッション。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt sql.NullTime
}

// Active はセッションが失効も期限切れもしていない場合にtrueを返す。
func (s Session) Active(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}
