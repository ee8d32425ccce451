package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reportdb "github.com/nao1215/findtail/internal/report/db"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/httpclient"
	"github.com/nao1215/findtail/pkg/middleware"
	"github.com/nao1215/findtail/pkg/pagination"
	"github.com/nao1215/findtail/pkg/storage"
	"go.uber.org/zap"
)

// timeFormat はレスポンスの日時形式。
const timeFormat = "2006-01-02T15:04:05Z"

// maxUploadSize はアップロード可能な写真の最大サイズ（10MB）。
var maxUploadSize int64 = 10 << 20

// statusResolved は解決済みの発見報告の状態。
const statusResolved = "resolved"

// Server は発見報告サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries は発見報告テーブルのクエリ実行オブジェクト。
	queries *reportdb.Queries
	// db はデータベース接続。
	db *database.DB
	// store は写真ファイルのストレージ。
	store *storage.Store
	// shelterClient はシェルターサービスの内部APIクライアント。
	shelterClient *httpclient.Client
	// messagingClient はメッセージングサービスの内部APIクライアント。
	messagingClient *httpclient.Client
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
}

// NewServer は新しい発見報告サーバーを生成する。
func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	store, err := storage.New(cfg.StorageDir)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return newServer(cfg, db, store, log), nil
}

func newServer(cfg *config.Config, db *database.DB, store *storage.Store, log *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.MaxMultipartMemory = maxUploadSize

	s := &Server{
		router:          router,
		addr:            cfg.Addr(),
		queries:         reportdb.New(db),
		db:              db,
		store:           store,
		shelterClient:   httpclient.New(cfg.Services.Shelter, httpclient.WithInternalToken(cfg.InternalToken)),
		messagingClient: httpclient.New(cfg.Services.Messaging, httpclient.WithInternalToken(cfg.InternalToken)),
		log:             log,
		jwtSecret:       cfg.JWTSecret,
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

	reports := s.router.Group("/api/v1/reports")
	{
		// 未解決の報告一覧（認証不要）
		reports.GET("", s.handleListOpen())
		// 報告の送信
		reports.POST("", auth, s.handleCreate())
		// 自分が送信した報告
		reports.GET("/mine", auth, s.handleListMine())
		// 自分のシェルター宛ての報告
		reports.GET("/shelter", auth, middleware.RequireRole(middleware.RoleShelter), s.handleListForShelter())
		// 報告の詳細（報告者または振り分け先シェルターのみ）
		reports.GET("/:id", auth, s.handleGetByID())
		// 状態の更新
		reports.PUT("/:id/status", auth, s.handleUpdateStatus())
		// 写真（取得は認証不要）
		reports.POST("/:id/photo", auth, s.handleUploadPhoto())
		reports.GET("/:id/photo", s.handleGetPhoto())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "report"})
	})
}

// createReportRequest は発見報告の送信リクエストのJSON構造。
type createReportRequest struct {
	// Species は動物の種類（dog, cat, other）。
	Species string `json:"species" binding:"required,oneof=dog cat other"`
	// Description は動物の特徴。
	Description string `json:"description" binding:"required,max=5000"`
	// Location は発見場所。
	Location string `json:"location" binding:"required,max=300"`
	// ContactPhone は報告者の連絡先電話番号。
	ContactPhone string `json:"contact_phone" binding:"max=50"`
	// ShelterID は報告先のシェルターID。省略可。
	ShelterID string `json:"shelter_id"`
}

// updateStatusRequest は状態更新リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は新しい状態（open, resolved）。
	Status string `json:"status" binding:"required,oneof=open resolved"`
}

// reportResponse は発見報告のJSONレスポンス構造。
type reportResponse struct {
	ID           string `json:"id"`
	ReporterID   string `json:"reporter_id"`
	ShelterID    string `json:"shelter_id"`
	Species      string `json:"species"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	ContactPhone string `json:"contact_phone"`
	PhotoURL     string `json:"photo_url"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// toReportResponse はDB行をJSONレスポンスに変換する。
func toReportResponse(r reportdb.FoundReport) reportResponse {
	photoURL := ""
	if r.PhotoKey != "" {
		photoURL = "/api/v1/reports/" + r.ID + "/photo"
	}
	return reportResponse{
		ID:           r.ID,
		ReporterID:   r.ReporterID,
		ShelterID:    r.ShelterID,
		Species:      r.Species,
		Description:  r.Description,
		Location:     r.Location,
		ContactPhone: r.ContactPhone,
		PhotoURL:     photoURL,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:    r.UpdatedAt.UTC().Format(timeFormat),
	}
}

func toReportResponses(reports []reportdb.FoundReport) []reportResponse {
	responses := make([]reportResponse, 0, len(reports))
	for _, r := range reports {
		responses = append(responses, toReportResponse(r))
	}
	return responses
}

// shelterInfo はシェルターサービスの内部APIが返すシェルター情報。
type shelterInfo struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

// notificationRequest はメッセージングサービスの通知作成APIのリクエスト。
type notificationRequest struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// notify はメッセージングサービスに通知の作成を依頼する。
// 通知は付随的な処理のため、失敗してもログに記録して続行する。
func (s *Server) notify(ctx context.Context, req notificationRequest) {
	if err := s.messagingClient.PostJSON(ctx, "/api/v1/internal/notifications", req, nil); err != nil {
		s.log.Warn("通知の送信に失敗",
			zap.String("user_id", req.UserID),
			zap.String("kind", req.Kind),
			zap.Error(err),
		)
	}
}

// handleCreate は発見報告の送信を処理するハンドラを返す。
// シェルターが指定された場合は存在を確認し、シェルターの所有者に通知する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req createReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		var sh shelterInfo
		if req.ShelterID != "" {
			err := s.shelterClient.GetJSON(httpclient.WithUserID(ctx, userID), "/api/v1/internal/shelters/"+req.ShelterID, &sh)
			if httpclient.IsNotFound(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "指定されたシェルターが存在しません"})
				return
			}
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "シェルターサービスとの通信に失敗しました"})
				s.log.Error("シェルター取得エラー", zap.Error(err))
				return
			}
		}

		reportID := uuid.New().String()
		if err := s.queries.CreateReport(ctx, reportdb.CreateReportParams{
			ID:             reportID,
			ReporterID:     userID,
			ShelterID:      sh.ID,
			ShelterOwnerID: sh.OwnerID,
			Species:        req.Species,
			Description:    req.Description,
			Location:       req.Location,
			ContactPhone:   req.ContactPhone,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "発見報告の登録に失敗しました"})
			s.log.Error("発見報告登録エラー", zap.Error(err))
			return
		}

		created, err := s.queries.GetReportByID(ctx, reportID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録した発見報告の取得に失敗しました"})
			s.log.Error("発見報告取得エラー", zap.Error(err))
			return
		}

		if sh.OwnerID != "" {
			s.notify(ctx, notificationRequest{
				UserID:  sh.OwnerID,
				Kind:    "found_report",
				Title:   "新しい発見報告が届きました",
				Message: fmt.Sprintf("%s: %s", req.Location, req.Description),
				Link:    "/reports/" + reportID,
			})
		}

		s.log.Info("発見報告を登録しました", zap.String("report_id", reportID), zap.String("shelter_id", sh.ID))
		c.JSON(http.StatusCreated, toReportResponse(created))
	}
}

// handleListOpen は未解決の発見報告一覧を返すハンドラを返す。
func (s *Server) handleListOpen() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.FromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reports, err := s.queries.ListOpenReports(c.Request.Context(), page.Limit, page.Offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "発見報告一覧の取得に失敗しました"})
			s.log.Error("発見報告一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toReportResponses(reports))
	}
}

// handleListMine はログイン中のユーザーが送信した報告を返すハンドラを返す。
func (s *Server) handleListMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := s.queries.ListReportsByReporter(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "発見報告一覧の取得に失敗しました"})
			s.log.Error("発見報告一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toReportResponses(reports))
	}
}

// handleListForShelter はログイン中のシェルター宛ての報告を返すハンドラを返す。
func (s *Server) handleListForShelter() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		ctx := c.Request.Context()

		var sh shelterInfo
		err := s.shelterClient.GetJSON(httpclient.WithUserID(ctx, userID), "/api/v1/internal/shelters/by-owner/"+userID, &sh)
		if httpclient.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "シェルターがまだ登録されていません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "シェルターサービスとの通信に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}

		reports, err := s.queries.ListReportsByShelter(ctx, sh.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "発見報告一覧の取得に失敗しました"})
			s.log.Error("発見報告一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toReportResponses(reports))
	}
}

// handleGetByID は発見報告の詳細を返すハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.loadAccessibleReport(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, toReportResponse(r))
	}
}

// handleUpdateStatus は発見報告の状態更新を処理するハンドラを返す。
// シェルターが報告を解決した場合は報告者に通知する。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.loadAccessibleReport(c)
		if !ok {
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		if err := s.queries.UpdateReportStatus(ctx, r.ID, req.Status); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "状態の更新に失敗しました"})
			s.log.Error("発見報告更新エラー", zap.Error(err))
			return
		}

		userID := middleware.GetUserID(c)
		if req.Status == statusResolved && r.Status != statusResolved && userID != r.ReporterID {
			s.notify(ctx, notificationRequest{
				UserID:  r.ReporterID,
				Kind:    "report_resolved",
				Title:   "発見報告が解決されました",
				Message: fmt.Sprintf("%sで見つかった動物の報告がシェルターによって解決されました", r.Location),
				Link:    "/reports/" + r.ID,
			})
		}

		updated, err := s.queries.GetReportByID(ctx, r.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の発見報告の取得に失敗しました"})
			s.log.Error("発見報告取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toReportResponse(updated))
	}
}

// handleUploadPhoto は発見報告の写真のアップロードを処理するハンドラを返す。
// 既に写真がある場合は置き換える。
func (s *Server) handleUploadPhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.loadReport(c)
		if !ok {
			return
		}
		if r.ReporterID != middleware.GetUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "写真を登録できるのは報告者のみです"})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルの取得に失敗しました: %v", err)})
			return
		}
		defer file.Close()

		obj, err := s.store.Save("reports/"+r.ID, header.Filename, file, maxUploadSize)
		switch {
		case errors.Is(err, storage.ErrNotImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "画像ファイルのみアップロードできます"})
			return
		case errors.Is(err, storage.ErrTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルサイズが上限を超えています（最大%dMB）", maxUploadSize/(1<<20))})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ファイルの保存に失敗しました"})
			s.log.Error("写真保存エラー", zap.Error(err))
			return
		}

		// 閲覧側でデコードされるため、保存前に解像度を確認する
		if _, err := s.store.ImageConfig(obj.Key); err != nil {
			_ = s.store.Remove(obj.Key)
			if errors.Is(err, storage.ErrTooManyPixels) {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("画像の解像度が上限を超えています（最大%d画素）", storage.MaxPixels)})
				return
			}
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "画像を読み込めませんでした"})
			s.log.Warn("画像ヘッダー読み込みエラー", zap.String("key", obj.Key), zap.Error(err))
			return
		}

		ctx := c.Request.Context()
		if err := s.queries.UpdateReportPhoto(ctx, r.ID, obj.Key); err != nil {
			_ = s.store.Remove(obj.Key)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の登録に失敗しました"})
			s.log.Error("写真登録エラー", zap.Error(err))
			return
		}
		if r.PhotoKey != "" {
			if err := s.store.Remove(r.PhotoKey); err != nil {
				s.log.Warn("古い写真の削除に失敗", zap.String("key", r.PhotoKey), zap.Error(err))
			}
		}

		updated, err := s.queries.GetReportByID(ctx, r.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の発見報告の取得に失敗しました"})
			s.log.Error("発見報告取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toReportResponse(updated))
	}
}

// handleGetPhoto は発見報告の写真ファイルを返すハンドラを返す。
func (s *Server) handleGetPhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.loadReport(c)
		if !ok {
			return
		}
		if r.PhotoKey == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "写真が登録されていません"})
			return
		}

		path, err := s.store.Path(r.PhotoKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真パス解決エラー", zap.String("key", r.PhotoKey), zap.Error(err))
			return
		}
		c.File(path)
	}
}

// loadReport はパスパラメータの発見報告を取得する。
func (s *Server) loadReport(c *gin.Context) (reportdb.FoundReport, bool) {
	r, err := s.queries.GetReportByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "発見報告が見つかりません"})
		return reportdb.FoundReport{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "発見報告の取得に失敗しました"})
		s.log.Error("発見報告取得エラー", zap.Error(err))
		return reportdb.FoundReport{}, false
	}
	return r, true
}

// loadAccessibleReport は発見報告を取得し、報告者または振り分け先シェルターの所有者であることを確認する。
func (s *Server) loadAccessibleReport(c *gin.Context) (reportdb.FoundReport, bool) {
	r, ok := s.loadReport(c)
	if !ok {
		return reportdb.FoundReport{}, false
	}
	userID := middleware.GetUserID(c)
	if userID != r.ReporterID && (r.ShelterOwnerID == "" || userID != r.ShelterOwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "この発見報告へのアクセス権がありません"})
		return reportdb.FoundReport{}, false
	}
	return r, true
}
