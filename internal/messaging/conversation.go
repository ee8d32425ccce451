package messaging

import (
	"errors"
	"slices"
	"strings"
	"time"

	messagingdb "github.com/nao1215/findtail/internal/messaging/db"
)

// 会話IDの接頭辞。
const (
	chatPrefix         = "chat_"
	notificationPrefix = "notification_"
)

// 会話の種類。
const (
	kindChat         = "chat"
	kindNotification = "notification"
)

// unknownUserName は表示名を解決できなかった相手に使う名前。
const unknownUserName = "ユーザー"

// previewLength はプレビューに含める最大文字数。
const previewLength = 80

// errInvalidConversationID は会話IDの形式が不正な場合のエラー。
var errInvalidConversationID = errors.New("会話IDの形式が不正です")

// Conversation は会話一覧の1項目。チャットと通知を同じ形で表す。
type Conversation struct {
	// ID は chat_<相手のユーザーID> または notification_<通知ID>。
	ID string
	// Kind は "chat" または "notification"。
	Kind string
	// Title はチャット相手の表示名、または通知のタイトル。
	Title string
	// Preview は最新メッセージ本文、または通知本文。
	Preview string
	// Timestamp は最新メッセージの送信日時、または通知の作成日時。
	Timestamp time.Time
	// Unread は未読件数。通知は0か1。
	Unread int64
	// CounterpartID はチャット相手のユーザーID。通知では空。
	CounterpartID string
	// Link は通知に関連する画面へのパス。チャットでは空。
	Link string
}

// chatID は相手ユーザーとのチャットの会話IDを返す。
func chatID(counterpartID string) string {
	return chatPrefix + counterpartID
}

// notificationConversationID は通知の会話IDを返す。
func notificationConversationID(notificationID string) string {
	return notificationPrefix + notificationID
}

// parseConversationID は会話IDを種類と参照先IDに分解する。
func parseConversationID(id string) (kind, ref string, err error) {
	if ref, ok := strings.CutPrefix(id, chatPrefix); ok && ref != "" {
		return kindChat, ref, nil
	}
	if ref, ok := strings.CutPrefix(id, notificationPrefix); ok && ref != "" {
		return kindNotification, ref, nil
	}
	return "", "", errInvalidConversationID
}

// buildConversations はメッセージと通知をひとつの会話一覧にまとめる。
//
// メッセージは相手ユーザーごとにまとめ、最新メッセージを代表とする。
// 未読数は相手からuserID宛ての未読メッセージ数。通知は1件ずつ項目になる。
// 結果は日時の新しい順で、同じ日時の項目は入力順を保つ。
func buildConversations(userID string, messages []messagingdb.Message, notifications []messagingdb.Notification, names map[string]string) []Conversation {
	chats := make(map[string]*Conversation)
	var order []string

	for _, m := range messages {
		counterpart := m.RecipientID
		if m.RecipientID == userID {
			counterpart = m.SenderID
		}

		conv, ok := chats[counterpart]
		if !ok {
			conv = &Conversation{
				ID:            chatID(counterpart),
				Kind:          kindChat,
				Title:         displayName(names, counterpart),
				CounterpartID: counterpart,
			}
			chats[counterpart] = conv
			order = append(order, counterpart)
		}
		if conv.Timestamp.IsZero() || m.CreatedAt.After(conv.Timestamp) {
			conv.Timestamp = m.CreatedAt
			conv.Preview = preview(m.Body)
		}
		if m.RecipientID == userID && m.SenderID == counterpart && !m.IsRead {
			conv.Unread++
		}
	}

	conversations := make([]Conversation, 0, len(order)+len(notifications))
	for _, counterpart := range order {
		conversations = append(conversations, *chats[counterpart])
	}
	for _, n := range notifications {
		var unread int64
		if !n.IsRead {
			unread = 1
		}
		conversations = append(conversations, Conversation{
			ID:        notificationConversationID(n.ID),
			Kind:      kindNotification,
			Title:     n.Title,
			Preview:   preview(n.Message),
			Timestamp: n.CreatedAt,
			Unread:    unread,
			Link:      n.Link,
		})
	}

	slices.SortStableFunc(conversations, func(a, b Conversation) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return conversations
}

// counterpartIDs はメッセージに登場する相手ユーザーのIDを重複なく返す。
func counterpartIDs(userID string, messages []messagingdb.Message) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, m := range messages {
		id := m.RecipientID
		if m.RecipientID == userID {
			id = m.SenderID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func displayName(names map[string]string, userID string) string {
	if name := names[userID]; name != "" {
		return name
	}
	return unknownUserName
}

// preview は本文を一覧表示用に切り詰める。
func preview(body string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength]) + "…"
}
