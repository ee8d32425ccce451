package messaging

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	messagingdb "github.com/nao1215/findtail/internal/messaging/db"
	"github.com/nao1215/findtail/pkg/event"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
)

// handleListNotifications は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		notifications, err := s.queries.ListNotificationsByUser(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			s.log.Error("通知一覧取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnreadNotifications は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnreadNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		notifications, err := s.queries.ListUnreadNotifications(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			s.log.Error("未読通知一覧取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleMarkNotificationRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		notificationID := c.Param("id")

		// 通知の存在確認と所有者チェック
		if _, ok := s.loadOwnNotification(c, notificationID); !ok {
			return
		}

		marked, err := s.queries.MarkNotificationRead(c.Request.Context(), notificationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			s.log.Error("通知既読処理エラー", zap.Error(err))
			return
		}

		s.publish(middleware.GetUserID(c), event.TypeConversationRead, event.ConversationReadData{
			ConversationID: notificationConversationID(notificationID),
			Marked:         marked,
		})
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllNotificationsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllNotificationsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		marked, err := s.queries.MarkAllNotificationsRead(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			s.log.Error("全通知既読処理エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "marked": marked})
	}
}

// createNotificationRequest は通知作成リクエストのJSON構造。
type createNotificationRequest struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id" binding:"required"`
	// Kind は通知の分類（found_report, donation など）。
	Kind string `json:"kind" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// Link は通知に関連する画面へのパス。
	Link string `json:"link"`
}

// handleCreateNotification は通知を作成するハンドラ。
// 内部API（発見報告・寄付サービスから呼び出される）。
// 通知先ユーザーの接続中クライアントにnotification.createdイベントを配信する。
func (s *Server) handleCreateNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		n, err := s.queries.CreateNotification(c.Request.Context(), messagingdb.CreateNotificationParams{
			ID:      uuid.New().String(),
			UserID:  req.UserID,
			Kind:    req.Kind,
			Title:   req.Title,
			Message: req.Message,
			Link:    req.Link,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			s.log.Error("通知作成エラー", zap.Error(err))
			return
		}

		s.publish(n.UserID, event.TypeNotificationCreated, event.NotificationCreatedData{
			NotificationID: n.ID,
			ConversationID: notificationConversationID(n.ID),
			Kind:           n.Kind,
			Title:          n.Title,
			Link:           n.Link,
		})

		c.JSON(http.StatusCreated, toNotificationResponse(n))
	}
}
