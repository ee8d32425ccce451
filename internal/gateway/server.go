package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gatewaydb "github.com/nao1215/findtail/internal/gateway/db"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/httpclient"
	"github.com/nao1215/findtail/pkg/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// timeFormat はレスポンスの日時形式。
const timeFormat = "2006-01-02T15:04:05Z"

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries はプロフィール・セッションテーブルのクエリ実行オブジェクト。
	queries *gatewaydb.Queries
	// db はデータベース接続。
	db *database.DB
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// internalToken は内部APIを保護する共有トークン。
	internalToken string
	// devMode は開発用トークン発行を有効にする。
	devMode bool
	// services は内部サービスのURL。
	services config.Services
	// clients はダッシュボード集約に使う各サービスのクライアント。
	clients serviceClients
	// proxyClient はプロキシ転送に使うHTTPクライアント。
	proxyClient *http.Client
}

// serviceClients は内部サービスごとのHTTPクライアント。
type serviceClients struct {
	shelter   *httpclient.Client
	animal    *httpclient.Client
	report    *httpclient.Client
	donation  *httpclient.Client
	messaging *httpclient.Client
}

// NewServer は新しいGatewayサーバーを生成する。
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
	router.Use(middleware.CORS(middleware.FrontendCORS(cfg.FrontendURL)))

	internal := httpclient.WithInternalToken(cfg.InternalToken)
	s := &Server{
		router:        router,
		addr:          cfg.Addr(),
		queries:       gatewaydb.New(db),
		db:            db,
		log:           log,
		jwtSecret:     cfg.JWTSecret,
		internalToken: cfg.InternalToken,
		devMode:       cfg.DevMode,
		services:      cfg.Services,
		clients: serviceClients{
			shelter:   httpclient.New(cfg.Services.Shelter, internal),
			animal:    httpclient.New(cfg.Services.Animal, internal),
			report:    httpclient.New(cfg.Services.Report, internal),
			donation:  httpclient.New(cfg.Services.Donation, internal),
			messaging: httpclient.New(cfg.Services.Messaging, internal),
		},
		proxyClient: &http.Client{Timeout: 60 * time.Second},
	}
	s.setupRoutes()
	return s
}

// Run は期限切れセッションの削除ジョブとHTTPサーバーを起動する。
func (s *Server) Run() error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", s.cleanupSessions); err != nil {
		return fmt.Errorf("セッション削除ジョブの登録に失敗: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	return s.router.Run(s.addr)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// cleanupSessions は期限切れのセッションを削除する。
func (s *Server) cleanupSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.queries.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		s.log.Error("期限切れセッションの削除に失敗", zap.Error(err))
		return
	}
	s.log.Info("期限切れセッションを削除しました", zap.Int64("deleted", deleted))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtAuth := middleware.JWTAuth(s.jwtSecret)
	session := s.requireSession()

	// 認証エンドポイント
	auth := s.router.Group("/auth")
	{
		auth.POST("/signup", s.handleSignUp())
		auth.POST("/signin", s.handleSignIn())
		auth.POST("/refresh", jwtAuth, session, s.handleRefresh())
		auth.POST("/signout", jwtAuth, session, s.handleSignOut())
		// 開発用トークン発行（開発モードのみ）
		auth.POST("/dev-token", s.handleDevToken())
	}

	api := s.router.Group("/api/v1")
	secured := api.Group("", jwtAuth, session)
	{
		// 認証コンテキスト
		secured.GET("/me", s.handleGetMe())
		secured.PUT("/me", s.handleUpdateMe())
		// ロール別ダッシュボード
		secured.GET("/dashboard", s.handleDashboard())
	}

	// 公開プロフィール
	api.GET("/profiles/:id", s.handleGetProfile())

	// 内部API（各サービスから呼び出される）
	internal := api.Group("/internal", middleware.InternalAuth(s.internalToken))
	{
		internal.GET("/profiles", s.handleInternalProfiles())
	}

	s.setupProxyRoutes(api, secured)

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// requireSession はJWTに含まれるセッションが有効であることを確認するミドルウェアを返す。
// サインアウトやトークン更新で失効したセッションのトークンは401になる。
// JWTAuthミドルウェアの後に適用する必要がある。
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.queries.GetSession(c.Request.Context(), middleware.GetSessionID(c))
		if errors.Is(err, sql.ErrNoRows) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "セッションが無効です"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "セッションの確認に失敗しました"})
			s.log.Error("セッション取得エラー", zap.Error(err))
			return
		}
		if session.UserID != middleware.GetUserID(c) || !session.Active(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "セッションが無効です"})
			return
		}
		c.Next()
	}
}
