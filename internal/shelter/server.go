package shelter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	shelterdb "github.com/nao1215/findtail/internal/shelter/db"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/middleware"
	"github.com/nao1215/findtail/pkg/pagination"
	"go.uber.org/zap"
)

// timeFormat はレスポンスの日時形式。
const timeFormat = "2006-01-02T15:04:05Z"

// Server はシェルターサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries はシェルターテーブルのクエリ実行オブジェクト。
	queries *shelterdb.Queries
	// db はデータベース接続。
	db *database.DB
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// internalToken は内部API用の共有トークン。
	internalToken string
}

// NewServer は新しいシェルターサーバーを生成する。
// データベースへの接続とマイグレーションを行う。
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
		router:        router,
		addr:          cfg.Addr(),
		queries:       shelterdb.New(db),
		db:            db,
		log:           log,
		jwtSecret:     cfg.JWTSecret,
		internalToken: cfg.InternalToken,
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := middleware.JWTAuth(s.jwtSecret)
	shelterOnly := middleware.RequireRole(middleware.RoleShelter)

	api := s.router.Group("/api/v1")
	{
		shelters := api.Group("/shelters")
		{
			// シェルター一覧・詳細（認証不要）
			shelters.GET("", s.handleList())
			shelters.GET("/:id", s.handleGetByID())
			// 自分のシェルター
			shelters.GET("/mine", auth, shelterOnly, s.handleGetMine())
			// シェルター登録
			shelters.POST("", auth, shelterOnly, s.handleCreate())
			// シェルター更新・削除（所有者のみ）
			shelters.PUT("/:id", auth, s.handleUpdate())
			shelters.DELETE("/:id", auth, s.handleDelete())
		}

		// 内部API（他のサービスから呼び出される）
		internal := api.Group("/internal", middleware.InternalAuth(s.internalToken))
		{
			internal.GET("/shelters/:id", s.handleInternalGetByID())
			internal.GET("/shelters/by-owner/:owner_id", s.handleInternalGetByOwner())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "shelter"})
	})
}

// shelterRequest はシェルター登録・更新リクエストのJSON構造。
type shelterRequest struct {
	// Name はシェルター名。
	Name string `json:"name" binding:"required,max=200"`
	// City は所在都市。
	City string `json:"city" binding:"required,max=100"`
	// Address は住所。
	Address string `json:"address" binding:"max=300"`
	// Phone は電話番号。
	Phone string `json:"phone" binding:"max=50"`
	// Email は連絡先メールアドレス。
	Email string `json:"email" binding:"omitempty,email"`
	// Website はWebサイトのURL。
	Website string `json:"website" binding:"omitempty,url"`
	// Description はシェルターの紹介文。
	Description string `json:"description" binding:"max=5000"`
}

// shelterResponse はシェルターのJSONレスポンス構造。
type shelterResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// toShelterResponse はDB行をJSONレスポンスに変換する。
func toShelterResponse(sh shelterdb.Shelter) shelterResponse {
	return shelterResponse{
		ID:          sh.ID,
		OwnerID:     sh.OwnerID,
		Name:        sh.Name,
		City:        sh.City,
		Address:     sh.Address,
		Phone:       sh.Phone,
		Email:       sh.Email,
		Website:     sh.Website,
		Description: sh.Description,
		CreatedAt:   sh.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   sh.UpdatedAt.UTC().Format(timeFormat),
	}
}

// handleList はシェルター一覧取得を処理するハンドラを返す。
// city で都市、q で名前・紹介文の部分一致検索ができる。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.FromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		shelters, err := s.queries.ListShelters(c.Request.Context(), shelterdb.ListSheltersParams{
			City:   c.Query("city"),
			Query:  c.Query("q"),
			Limit:  page.Limit,
			Offset: page.Offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルター一覧の取得に失敗しました"})
			s.log.Error("シェルター一覧取得エラー", zap.Error(err))
			return
		}

		responses := make([]shelterResponse, 0, len(shelters))
		for _, sh := range shelters {
			responses = append(responses, toShelterResponse(sh))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetByID はシェルター詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, ok := s.loadShelter(c, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toShelterResponse(sh))
	}
}

// handleGetMine はログイン中のユーザーが管理するシェルターを返すハンドラを返す。
func (s *Server) handleGetMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		sh, err := s.queries.GetShelterByOwnerID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "シェルターがまだ登録されていません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの取得に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toShelterResponse(sh))
	}
}

// handleCreate はシェルター登録を処理するハンドラを返す。
// 1ユーザーにつき1シェルターまでで、既に登録済みの場合は409を返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req shelterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		if _, err := s.queries.GetShelterByOwnerID(ctx, userID); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このアカウントには既にシェルターが登録されています"})
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの確認に失敗しました"})
			s.log.Error("シェルター確認エラー", zap.Error(err))
			return
		}

		shelterID := uuid.New().String()
		if err := s.queries.CreateShelter(ctx, shelterdb.CreateShelterParams{
			ID:          shelterID,
			OwnerID:     userID,
			Name:        req.Name,
			City:        req.City,
			Address:     req.Address,
			Phone:       req.Phone,
			Email:       req.Email,
			Website:     req.Website,
			Description: req.Description,
		}); err != nil {
			if database.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "このアカウントには既にシェルターが登録されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの登録に失敗しました"})
			s.log.Error("シェルター登録エラー", zap.Error(err))
			return
		}

		created, err := s.queries.GetShelterByID(ctx, shelterID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録したシェルターの取得に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}

		s.log.Info("シェルターを登録しました", zap.String("shelter_id", shelterID), zap.String("owner_id", userID))
		c.JSON(http.StatusCreated, toShelterResponse(created))
	}
}

// handleUpdate はシェルター更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, ok := s.loadOwnedShelter(c)
		if !ok {
			return
		}

		var req shelterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		if err := s.queries.UpdateShelter(ctx, shelterdb.UpdateShelterParams{
			Name:        req.Name,
			City:        req.City,
			Address:     req.Address,
			Phone:       req.Phone,
			Email:       req.Email,
			Website:     req.Website,
			Description: req.Description,
			ID:          sh.ID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの更新に失敗しました"})
			s.log.Error("シェルター更新エラー", zap.Error(err))
			return
		}

		updated, err := s.queries.GetShelterByID(ctx, sh.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後のシェルターの取得に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toShelterResponse(updated))
	}
}

// handleDelete はシェルター削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, ok := s.loadOwnedShelter(c)
		if !ok {
			return
		}

		if err := s.queries.DeleteShelter(c.Request.Context(), sh.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの削除に失敗しました"})
			s.log.Error("シェルター削除エラー", zap.Error(err))
			return
		}

		s.log.Info("シェルターを削除しました", zap.String("shelter_id", sh.ID))
		c.JSON(http.StatusOK, gin.H{"message": "シェルターを削除しました"})
	}
}

// handleInternalGetByID は内部API用のシェルター取得ハンドラを返す。
func (s *Server) handleInternalGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, ok := s.loadShelter(c, c.Param("id"))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toShelterResponse(sh))
	}
}

// handleInternalGetByOwner は所有者IDからシェルターを取得する内部APIハンドラを返す。
// 動物サービスが登録時にシェルターを解決するために使用する。
func (s *Server) handleInternalGetByOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, err := s.queries.GetShelterByOwnerID(c.Request.Context(), c.Param("owner_id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "シェルターが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの取得に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toShelterResponse(sh))
	}
}

// loadShelter はIDでシェルターを取得する。
// 見つからない場合やエラーの場合はレスポンスを書き込み、falseを返す。
func (s *Server) loadShelter(c *gin.Context, id string) (shelterdb.Shelter, bool) {
	sh, err := s.queries.GetShelterByID(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "シェルターが見つかりません"})
		return shelterdb.Shelter{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "シェルターの取得に失敗しました"})
		s.log.Error("シェルター取得エラー", zap.Error(err))
		return shelterdb.Shelter{}, false
	}
	return sh, true
}

// loadOwnedShelter はパスパラメータのシェルターを取得し、所有者であることを確認する。
func (s *Server) loadOwnedShelter(c *gin.Context) (shelterdb.Shelter, bool) {
	sh, ok := s.loadShelter(c, c.Param("id"))
	if !ok {
		return shelterdb.Shelter{}, false
	}
	if sh.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "このシェルターへのアクセス権がありません"})
		return shelterdb.Shelter{}, false
	}
	return sh, true
}
