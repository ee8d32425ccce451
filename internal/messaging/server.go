package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	messagingdb "github.com/nao1215/findtail/internal/messaging/db"
	"github.com/nao1215/findtail/internal/messaging/realtime"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/event"
	"github.com/nao1215/findtail/pkg/httpclient"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
)

// timeFormat はレスポンスの日時形式。
const timeFormat = "2006-01-02T15:04:05Z"

// eventSource はこのサービスが発行するイベントのsource属性。
const eventSource = "/findtail/messaging"

// Server はメッセージングサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// handler はWebSocket接続とGinのルーターを振り分けるトップレベルのハンドラ。
	handler http.Handler
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries はメッセージ・通知テーブルのクエリ実行オブジェクト。
	queries *messagingdb.Queries
	// db はデータベース接続。
	db *database.DB
	// hub は接続中のクライアントへのイベント配信ハブ。
	hub *realtime.Hub
	// gatewayClient は表示名を解決するためのゲートウェイ内部APIクライアント。
	gatewayClient *httpclient.Client
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// internalToken は内部APIを保護する共有トークン。
	internalToken string
	// originPatterns はWebSocket接続を許可するオリジンのホスト。
	originPatterns []string
	// retention は既読通知を保持する期間。
	retention time.Duration
}

// NewServer は新しいメッセージングサーバーを生成する。
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return newServer(cfg, db, log), nil
}

func newServer(cfg *config.Config, db *database.DB, log *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	s := &Server{
		router:         router,
		addr:           cfg.Addr(),
		queries:        messagingdb.New(db),
		db:             db,
		hub:            realtime.NewHub(realtime.DefaultBufferSize),
		gatewayClient:  httpclient.New(cfg.Services.Gateway, httpclient.WithInternalToken(cfg.InternalToken)),
		log:            log,
		jwtSecret:      cfg.JWTSecret,
		internalToken:  cfg.InternalToken,
		originPatterns: originPatterns(cfg.FrontendURL),
		retention:      cfg.NotificationRetention,
	}
	s.setupRoutes()

	mux := http.NewServeMux()
	mux.Handle("GET "+realtimePath, s.handleRealtime())
	mux.Handle("/", router)
	s.handler = mux
	return s
}

// Run は既読通知の削除ジョブとHTTPサーバーを起動する。
func (s *Server) Run() error {
	scheduler, err := s.startRetention()
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := middleware.JWTAuth(s.jwtSecret)

	api := s.router.Group("/api/v1")
	{
		// 問い合わせフォーム（公開）
		api.POST("/contact", s.handleContact())

		// メッセージ送信
		api.POST("/messages", auth, s.handleSendMessage())

		conversations := api.Group("/conversations", auth)
		{
			// 会話一覧（チャットと通知の集約）
			conversations.GET("", s.handleListConversations())
			// 未読数
			conversations.GET("/unread-count", s.handleUnreadCount())
			// 会話の詳細
			conversations.GET("/:id", s.handleGetConversation())
			// 会話を既読にする
			conversations.POST("/:id/read", s.handleMarkConversationRead())
		}

		notifications := api.Group("/notifications", auth)
		{
			// 通知一覧取得
			notifications.GET("", s.handleListNotifications())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnreadNotifications())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkNotificationRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllNotificationsRead())
		}

		internal := api.Group("/internal", middleware.InternalAuth(s.internalToken))
		{
			// 通知作成（各サービスから呼び出される）
			internal.POST("/notifications", s.handleCreateNotification())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "messaging"})
	})
}

// originPatterns はフロントエンドURLからWebSocketで許可するオリジンを求める。
func originPatterns(frontendURL string) []string {
	u, err := url.Parse(frontendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// publish はユーザーの接続中クライアントにイベントを配信する。
// 配信の失敗はログに記録するだけで呼び出し元には返さない。
func (s *Server) publish(userID string, eventType event.Type, data any) {
	e, err := event.New(eventSource, eventType, userID, data)
	if err != nil {
		s.log.Warn("イベントの生成に失敗", zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	delivered := s.hub.Publish(userID, e)
	s.log.Debug("イベントを配信しました",
		zap.String("type", string(eventType)),
		zap.String("user_id", userID),
		zap.Int("subscribers", delivered),
	)
}

// profileInfo はゲートウェイの内部APIが返すプロフィール。
type profileInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// lookupNames はユーザーIDから表示名を解決する。
// ゲートウェイに問い合わせできない場合は空のマップを返す。
func (s *Server) lookupNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	var profiles []profileInfo
	path := "/api/v1/internal/profiles?ids=" + url.QueryEscape(strings.Join(ids, ","))
	if err := s.gatewayClient.GetJSON(ctx, path, &profiles); err != nil {
		s.log.Warn("表示名の解決に失敗", zap.Int("count", len(ids)), zap.Error(err))
		return names
	}
	for _, p := range profiles {
		names[p.ID] = p.DisplayName
	}
	return names
}

// messageResponse はメッセージのJSONレスポンス構造。
type messageResponse struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	AnimalID    string `json:"animal_id"`
	Body        string `json:"body"`
	IsRead      bool   `json:"is_read"`
	CreatedAt   string `json:"created_at"`
}

func toMessageResponse(m messagingdb.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		AnimalID:    m.AnimalID,
		Body:        m.Body,
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt.UTC().Format(timeFormat),
	}
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Link      string `json:"link"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

func toNotificationResponse(n messagingdb.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.UTC().Format(timeFormat),
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []messagingdb.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// contactRequest は問い合わせフォームのJSON構造。
type contactRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"max=200"`
	Body    string `json:"body" binding:"required,max=5000"`
}

// handleContact は問い合わせフォームの送信を保存するハンドラ。
func (s *Server) handleContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		created, err := s.queries.CreateContactRequest(c.Request.Context(), messagingdb.CreateContactRequestParams{
			ID:      uuid.New().String(),
			Name:    strings.TrimSpace(req.Name),
			Email:   strings.TrimSpace(req.Email),
			Subject: strings.TrimSpace(req.Subject),
			Body:    req.Body,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "問い合わせの保存に失敗しました"})
			s.log.Error("問い合わせ保存エラー", zap.Error(err))
			return
		}

		s.log.Info("問い合わせを受け付けました", zap.String("contact_id", created.ID))
		c.JSON(http.StatusCreated, gin.H{
			"id":         created.ID,
			"created_at": created.CreatedAt.Format(timeFormat),
			"message":    "お問い合わせを受け付けました",
		})
	}
}
