package donation

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	donationdb "github.com/nao1215/findtail/internal/donation/db"
	"github.com/nao1215/findtail/pkg/config"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/httpclient"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
)

// timeFormat はレスポンスの日時形式。
const timeFormat = "2006-01-02T15:04:05Z"

// defaultCurrency は通貨が省略された場合の通貨。
const defaultCurrency = "UAH"

// Server は寄付サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries は寄付テーブルのクエリ実行オブジェクト。
	queries *donationdb.Queries
	// db はデータベース接続。
	db *database.DB
	// shelterClient はシェルターサービスの内部APIクライアント。
	shelterClient *httpclient.Client
	// messagingClient はメッセージングサービスの内部APIクライアント。
	messagingClient *httpclient.Client
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
}

// NewServer は新しい寄付サーバーを生成する。
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
		router:          router,
		addr:            cfg.Addr(),
		queries:         donationdb.New(db),
		db:              db,
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
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// 寄付の申し出
		api.POST("/donations", s.handleCreate())
		// 自分の寄付履歴
		api.GET("/donations/mine", s.handleListMine())
		// シェルターへの寄付一覧と合計（シェルター所有者のみ）
		api.GET("/shelters/:id/donations", s.handleListForShelter())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "donation"})
	})
}

// createDonationRequest は寄付リクエストのJSON構造。
type createDonationRequest struct {
	// ShelterID は寄付先シェルターのID。
	ShelterID string `json:"shelter_id" binding:"required"`
	// AmountCents は金額（最小通貨単位）。
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
	// Currency は通貨（UAH, USD, EUR）。省略時はUAH。
	Currency string `json:"currency" binding:"omitempty,oneof=UAH USD EUR"`
	// Message はシェルターへのメッセージ。
	Message string `json:"message" binding:"max=1000"`
	// Anonymous はシェルターに寄付者を公開しない場合にtrue。
	Anonymous bool `json:"anonymous"`
}

// donationResponse は寄付のJSONレスポンス構造。
// 匿名の寄付をシェルターに返す場合はDonorIDを空にする。
type donationResponse struct {
	ID          string `json:"id"`
	ShelterID   string `json:"shelter_id"`
	DonorID     string `json:"donor_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Message     string `json:"message"`
	Anonymous   bool   `json:"anonymous"`
	CreatedAt   string `json:"created_at"`
}

// totalResponse は通貨ごとの合計のJSONレスポンス構造。
type totalResponse struct {
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	Count       int64  `json:"count"`
}

// toDonationResponse はDB行をJSONレスポンスに変換する。
// hideAnonymousがtrueの場合、匿名の寄付の寄付者IDを隠す。
func toDonationResponse(d donationdb.Donation, hideAnonymous bool) donationResponse {
	donorID := d.DonorID
	if hideAnonymous && d.Anonymous {
		donorID = ""
	}
	return donationResponse{
		ID:          d.ID,
		ShelterID:   d.ShelterID,
		DonorID:     donorID,
		AmountCents: d.AmountCents,
		Currency:    d.Currency,
		Message:     d.Message,
		Anonymous:   d.Anonymous,
		CreatedAt:   d.CreatedAt.UTC().Format(timeFormat),
	}
}

// formatAmount は最小通貨単位の金額を "150.00 UAH" の形式にする。
func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
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

// lookupShelter はシェルターサービスからシェルターを取得する。
// 見つからない場合は404、通信エラーは502をレスポンスに書き込み、falseを返す。
func (s *Server) lookupShelter(c *gin.Context, shelterID string, notFoundStatus int) (shelterInfo, bool) {
	ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))

	var sh shelterInfo
	err := s.shelterClient.GetJSON(ctx, "/api/v1/internal/shelters/"+shelterID, &sh)
	if httpclient.IsNotFound(err) {
		c.JSON(notFoundStatus, gin.H{"error": "シェルターが見つかりません"})
		return shelterInfo{}, false
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "シェルターサービスとの通信に失敗しました"})
		s.log.Error("シェルター取得エラー", zap.Error(err))
		return shelterInfo{}, false
	}
	return sh, true
}

// handleCreate は寄付の申し出を処理するハンドラを返す。
// 寄付先シェルターの存在を確認し、所有者に通知する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req createDonationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if req.Currency == "" {
			req.Currency = defaultCurrency
		}

		sh, ok := s.lookupShelter(c, req.ShelterID, http.StatusBadRequest)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		donationID := uuid.New().String()
		if err := s.queries.CreateDonation(ctx, donationdb.CreateDonationParams{
			ID:             donationID,
			ShelterID:      sh.ID,
			ShelterOwnerID: sh.OwnerID,
			DonorID:        userID,
			AmountCents:    req.AmountCents,
			Currency:       req.Currency,
			Message:        req.Message,
			Anonymous:      req.Anonymous,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "寄付の記録に失敗しました"})
			s.log.Error("寄付記録エラー", zap.Error(err))
			return
		}

		created, err := s.queries.GetDonationByID(ctx, donationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "記録した寄付の取得に失敗しました"})
			s.log.Error("寄付取得エラー", zap.Error(err))
			return
		}

		donor := "支援者"
		if req.Anonymous {
			donor = "匿名の支援者"
		}
		note := notificationRequest{
			UserID:  sh.OwnerID,
			Kind:    "donation",
			Title:   "寄付が届きました",
			Message: fmt.Sprintf("%sから %s の寄付の申し出がありました", donor, formatAmount(req.AmountCents, req.Currency)),
			Link:    "/dashboard/donations",
		}
		if err := s.messagingClient.PostJSON(ctx, "/api/v1/internal/notifications", note, nil); err != nil {
			s.log.Warn("通知の送信に失敗", zap.String("user_id", sh.OwnerID), zap.Error(err))
		}

		s.log.Info("寄付を記録しました",
			zap.String("donation_id", donationID),
			zap.String("shelter_id", sh.ID),
			zap.Int64("amount_cents", req.AmountCents),
			zap.String("currency", req.Currency),
		)
		c.JSON(http.StatusCreated, toDonationResponse(created, false))
	}
}

// handleListMine はログイン中のユーザーの寄付履歴を返すハンドラを返す。
func (s *Server) handleListMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		donations, err := s.queries.ListDonationsByDonor(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "寄付履歴の取得に失敗しました"})
			s.log.Error("寄付履歴取得エラー", zap.Error(err))
			return
		}

		responses := make([]donationResponse, 0, len(donations))
		for _, d := range donations {
			responses = append(responses, toDonationResponse(d, false))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleListForShelter はシェルターへの寄付一覧と通貨ごとの合計を返すハンドラを返す。
// シェルターの所有者のみ閲覧でき、匿名の寄付は寄付者を隠す。
func (s *Server) handleListForShelter() gin.HandlerFunc {
	return func(c *gin.Context) {
		sh, ok := s.lookupShelter(c, c.Param("id"), http.StatusNotFound)
		if !ok {
			return
		}
		if sh.OwnerID != middleware.GetUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "このシェルターの寄付を閲覧する権限がありません"})
			return
		}

		ctx := c.Request.Context()
		donations, err := s.queries.ListDonationsByShelter(ctx, sh.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "寄付一覧の取得に失敗しました"})
			s.log.Error("寄付一覧取得エラー", zap.Error(err))
			return
		}
		totals, err := s.queries.SumDonationsByShelter(ctx, sh.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "寄付の集計に失敗しました"})
			s.log.Error("寄付集計エラー", zap.Error(err))
			return
		}

		donationResponses := make([]donationResponse, 0, len(donations))
		for _, d := range donations {
			donationResponses = append(donationResponses, toDonationResponse(d, true))
		}
		totalResponses := make([]totalResponse, 0, len(totals))
		for _, t := range totals {
			totalResponses = append(totalResponses, totalResponse{
				Currency:    t.Currency,
				AmountCents: t.AmountCents,
				Count:       t.Count,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"shelter_id": sh.ID,
			"donations":  donationResponses,
			"totals":     totalResponses,
		})
	}
}
