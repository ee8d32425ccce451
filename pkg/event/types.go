// Package event はリアルタイム配信するイベントの種類とペイロードを定義する。
//
// イベントはCloudEvents形式でWebSocket経由でクライアントに送信される。
// クライアントはイベントを受け取ると会話一覧を再取得する。
package event

// Type はイベントの種類を表す。CloudEventsのtype属性に使用する。
type Type string

const (
	// TypeMessageCreated は新しいメッセージが届いたことを表す。
	TypeMessageCreated Type = "findtail.message.created"
	// TypeNotificationCreated は新しい通知が作成されたことを表す。
	TypeNotificationCreated Type = "findtail.notification.created"
	// TypeConversationRead は会話が既読になったことを表す。
	// 同じユーザーの他の接続で未読数を更新するために使用する。
	TypeConversationRead Type = "findtail.conversation.read"
)

// MessageCreatedData はTypeMessageCreatedイベントのデータ。
type MessageCreatedData struct {
	// MessageID はメッセージのID。
	MessageID string `json:"message_id"`
	// ConversationID は受信者から見た会話ID（chat_<送信者ID>）。
	ConversationID string `json:"conversation_id"`
	// SenderID は送信者のユーザーID。
	SenderID string `json:"sender_id"`
	// RecipientID は受信者のユーザーID。
	RecipientID string `json:"recipient_id"`
	// AnimalID は話題になっている動物のID。無い場合は空文字列。
	AnimalID string `json:"animal_id,omitempty"`
	// Preview はメッセージ本文の先頭部分。
	Preview string `json:"preview"`
}

// NotificationCreatedData はTypeNotificationCreatedイベントのデータ。
type NotificationCreatedData struct {
	// NotificationID は通知のID。
	NotificationID string `json:"notification_id"`
	// ConversationID は会話ID（notification_<通知ID>）。
	ConversationID string `json:"conversation_id"`
	// Kind は通知の分類。
	Kind string `json:"kind"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Link は通知に関連する画面へのパス。
	Link string `json:"link,omitempty"`
}

// ConversationReadData はTypeConversationReadイベントのデータ。
type ConversationReadData struct {
	// ConversationID は既読にした会話のID。
	ConversationID string `json:"conversation_id"`
	// Marked は既読にした行数。
	Marked int64 `json:"marked"`
}
