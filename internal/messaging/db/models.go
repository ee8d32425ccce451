package db

import "time"

// Message はユーザー間のメッセージ。
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	AnimalID    string
	Body        string
	IsRead      bool
	CreatedAt   time.Time
}

// Notification はユーザーへの通知。
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Message   string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

// ContactRequest は問い合わせフォームから送信された内容。
type ContactRequest struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Body      string
	CreatedAt time.Time
}
