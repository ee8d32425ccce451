package messaging

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	messagingdb "github.com/nao1215/findtail/internal/messaging/db"
	"github.com/nao1215/findtail/pkg/event"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sendMessageRequest はメッセージ送信リクエストのJSON構造。
type sendMessageRequest struct {
	// RecipientID は受信者のユーザーID。
	RecipientID string `json:"recipient_id" binding:"required"`
	// Body はメッセージ本文。
	Body string `json:"body" binding:"required,max=5000"`
	// AnimalID は話題にしている動物のID（任意）。
	AnimalID string `json:"animal_id"`
}

// conversationResponse は会話一覧の項目のJSONレスポンス構造。
type conversationResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Preview       string `json:"preview"`
	Timestamp     string `json:"timestamp"`
	Unread        int64  `json:"unread"`
	CounterpartID string `json:"counterpart_id,omitempty"`
	Link          string `json:"link,omitempty"`
}

func toConversationResponse(conv Conversation) conversationResponse {
	return conversationResponse{
		ID:            conv.ID,
		Kind:          conv.Kind,
		Title:         conv.Title,
		Preview:       conv.Preview,
		Timestamp:     conv.Timestamp.UTC().Format(timeFormat),
		Unread:        conv.Unread,
		CounterpartID: conv.CounterpartID,
		Link:          conv.Link,
	}
}

// handleSendMessage はメッセージを送信するハンドラ。
// 受信者の接続中クライアントにmessage.createdイベントを配信する。
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メッセージ本文が空です"})
			return
		}
		if req.RecipientID == userID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自分自身にメッセージを送ることはできません"})
			return
		}

		m, err := s.queries.CreateMessage(c.Request.Context(), messagingdb.CreateMessageParams{
			ID:          uuid.New().String(),
			SenderID:    userID,
			RecipientID: req.RecipientID,
			AnimalID:    req.AnimalID,
			Body:        req.Body,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メッセージの送信に失敗しました"})
			s.log.Error("メッセージ保存エラー", zap.Error(err))
			return
		}

		s.publish(m.RecipientID, event.TypeMessageCreated, event.MessageCreatedData{
			MessageID:      m.ID,
			ConversationID: chatID(m.SenderID),
			SenderID:       m.SenderID,
			RecipientID:    m.RecipientID,
			AnimalID:       m.AnimalID,
			Preview:        preview(m.Body),
		})

		c.JSON(http.StatusCreated, toMessageResponse(m))
	}
}

// handleListConversations はチャットと通知をまとめた会話一覧を返すハンドラ。
// メッセージと通知は並行して取得し、相手の表示名はゲートウェイから解決する。
func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var (
			messages      []messagingdb.Message
			notifications []messagingdb.Notification
		)
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			var err error
			messages, err = s.queries.ListMessagesForUser(ctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			notifications, err = s.queries.ListNotificationsByUser(ctx, userID)
			return err
		})
		if err := g.Wait(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会話一覧の取得に失敗しました"})
			s.log.Error("会話一覧取得エラー", zap.Error(err))
			return
		}

		names := s.lookupNames(c.Request.Context(), counterpartIDs(userID, messages))
		conversations := buildConversations(userID, messages, notifications, names)

		responses := make([]conversationResponse, 0, len(conversations))
		for _, conv := range conversations {
			responses = append(responses, toConversationResponse(conv))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleUnreadCount は未読のメッセージ数と通知数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var messages, notifications int64
		g, ctx := errgroup.WithContext(c.Request.Context())
		g.Go(func() error {
			var err error
			messages, err = s.queries.CountUnreadMessages(ctx, userID)
			return err
		})
		g.Go(func() error {
			var err error
			notifications, err = s.queries.CountUnreadNotifications(ctx, userID)
			return err
		})
		if err := g.Wait(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読数の取得に失敗しました"})
			s.log.Error("未読数取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages":      messages,
			"notifications": notifications,
			"total":         messages + notifications,
		})
	}
}

// handleGetConversation は会話の詳細を返すハンドラ。
// チャットは古い順のメッセージ、通知は通知本体を返す。
func (s *Server) handleGetConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		conversationID := c.Param("id")

		kind, ref, err := parseConversationID(conversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		if kind == kindNotification {
			n, ok := s.loadOwnNotification(c, ref)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id":           conversationID,
				"kind":         kindNotification,
				"notification": toNotificationResponse(n),
			})
			return
		}

		thread, err := s.queries.ListThread(ctx, userID, ref)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メッセージの取得に失敗しました"})
			s.log.Error("メッセージ取得エラー", zap.Error(err))
			return
		}
		messages := make([]messageResponse, 0, len(thread))
		for _, m := range thread {
			messages = append(messages, toMessageResponse(m))
		}

		names := s.lookupNames(ctx, []string{ref})
		c.JSON(http.StatusOK, gin.H{
			"id":   conversationID,
			"kind": kindChat,
			"counterpart": gin.H{
				"id":           ref,
				"display_name": displayName(names, ref),
			},
			"messages": messages,
		})
	}
}

// handleMarkConversationRead は会話を既読にするハンドラ。
// チャットでは相手から届いた未読メッセージ、通知では通知本体を既読にし、
// 同じユーザーの他の接続にconversation.readイベントを配信する。
func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		conversationID := c.Param("id")

		kind, ref, err := parseConversationID(conversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var marked int64
		if kind == kindNotification {
			if _, ok := s.loadOwnNotification(c, ref); !ok {
				return
			}
			marked, err = s.queries.MarkNotificationRead(c.Request.Context(), ref)
		} else {
			marked, err = s.queries.MarkThreadRead(c.Request.Context(), userID, ref)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "既読処理に失敗しました"})
			s.log.Error("既読処理エラー", zap.String("conversation_id", conversationID), zap.Error(err))
			return
		}

		s.publish(userID, event.TypeConversationRead, event.ConversationReadData{
			ConversationID: conversationID,
			Marked:         marked,
		})
		c.JSON(http.StatusOK, gin.H{"id": conversationID, "marked": marked})
	}
}

// loadOwnNotification は通知を取得し、呼び出したユーザーの通知であることを確認する。
// 見つからない場合は404、他人の通知は403をレスポンスに書き込み、falseを返す。
func (s *Server) loadOwnNotification(c *gin.Context, notificationID string) (messagingdb.Notification, bool) {
	n, err := s.queries.GetNotificationByID(c.Request.Context(), notificationID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
		return messagingdb.Notification{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
		s.log.Error("通知取得エラー", zap.Error(err))
		return messagingdb.Notification{}, false
	}
	if n.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
		return messagingdb.Notification{}, false
	}
	return n, true
}
