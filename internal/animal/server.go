package animal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	animaldb "github.com/nao1215/findtail/internal/animal/db"
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
// テスト時に差し替え可能にするためvarとして宣言する。
var maxUploadSize int64 = 10 << 20

const (
	// thumbnailSize はサムネイル画像の幅・高さ（ピクセル）。
	thumbnailSize = 320
	// maxPhotos は1匹あたりの写真の上限枚数。
	maxPhotos = 10
)

// 一覧の絞り込みで受け付ける種類と状態。
var (
	validSpecies  = []string{"dog", "cat", "other"}
	validStatuses = []string{"adoptable", "lost", "found", "adopted"}
)

// Server は動物サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// addr はサーバーのリッスンアドレス。
	addr string
	// queries は動物関連テーブルのクエリ実行オブジェクト。
	queries *animaldb.Queries
	// db はデータベース接続。
	db *database.DB
	// store は写真ファイルのストレージ。
	store *storage.Store
	// shelterClient はシェルターサービスの内部APIクライアント。
	shelterClient *httpclient.Client
	// log は構造化ロガー。
	log *zap.Logger
	// jwtSecret はJWT検証用の秘密鍵。
	jwtSecret string
	// internalToken は内部API用の共有トークン。
	internalToken string
}

// NewServer は新しい動物サーバーを生成する。
// データベースへの接続とマイグレーション、ストレージの初期化を行う。
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
	// マルチパートフォームの最大メモリを設定する。
	router.MaxMultipartMemory = maxUploadSize

	s := &Server{
		router:        router,
		addr:          cfg.Addr(),
		queries:       animaldb.New(db),
		db:            db,
		store:         store,
		shelterClient: httpclient.New(cfg.Services.Shelter, httpclient.WithInternalToken(cfg.InternalToken)),
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

	api := s.router.Group("/api/v1")
	{
		animals := api.Group("/animals")
		{
			// 動物一覧・詳細（認証不要）
			animals.GET("", s.handleList())
			animals.GET("/:id", s.handleGetByID())
			// 動物の登録（シェルターのみ）
			animals.POST("", auth, middleware.RequireRole(middleware.RoleShelter), s.handleCreate())
			// 動物の更新・削除（登録したシェルターのみ）
			animals.PUT("/:id", auth, s.handleUpdate())
			animals.DELETE("/:id", auth, s.handleDelete())

			// 写真（ファイル取得はimg要素から直接参照されるため認証不要）
			animals.POST("/:id/photos", auth, s.handleUploadPhoto())
			animals.DELETE("/:id/photos/:photo_id", auth, s.handleDeletePhoto())
			animals.GET("/:id/photos/:photo_id", s.handleGetPhotoFile(false))
			animals.GET("/:id/photos/:photo_id/thumbnail", s.handleGetPhotoFile(true))

			// お気に入り
			animals.POST("/:id/favorite", auth, s.handleAddFavorite())
			animals.DELETE("/:id/favorite", auth, s.handleRemoveFavorite())
		}
		api.GET("/favorites", auth, s.handleListFavorites())

		// 内部API（他のサービスから呼び出される）
		internal := api.Group("/internal", middleware.InternalAuth(s.internalToken))
		{
			internal.GET("/animals/by-shelter/:shelter_id", s.handleInternalListByShelter())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "animal"})
	})
}

// animalRequest は動物の登録・更新リクエストのJSON構造。
type animalRequest struct {
	// Name は動物の名前。
	Name string `json:"name" binding:"required,max=100"`
	// Species は種類（dog, cat, other）。
	Species string `json:"species" binding:"required,oneof=dog cat other"`
	// Breed は品種。
	Breed string `json:"breed" binding:"max=100"`
	// Sex は性別（male, female, unknown）。省略時はunknown。
	Sex string `json:"sex" binding:"omitempty,oneof=male female unknown"`
	// AgeMonths は推定月齢。
	AgeMonths int64 `json:"age_months" binding:"min=0,max=600"`
	// Status は状態（adoptable, lost, found, adopted）。
	Status string `json:"status" binding:"required,oneof=adoptable lost found adopted"`
	// City は所在都市。省略時はシェルターの都市。
	City string `json:"city" binding:"max=100"`
	// Description は紹介文。
	Description string `json:"description" binding:"max=5000"`
}

// photoResponse は写真のJSONレスポンス構造。
type photoResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Position     int64  `json:"position"`
	CreatedAt    string `json:"created_at"`
}

// animalResponse は動物のJSONレスポンス構造。
type animalResponse struct {
	ID          string          `json:"id"`
	ShelterID   string          `json:"shelter_id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Species     string          `json:"species"`
	Breed       string          `json:"breed"`
	Sex         string          `json:"sex"`
	AgeMonths   int64           `json:"age_months"`
	Status      string          `json:"status"`
	City        string          `json:"city"`
	Description string          `json:"description"`
	Photos      []photoResponse `json:"photos"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// toPhotoResponse はDB行をJSONレスポンスに変換する。
func toPhotoResponse(p animaldb.Photo) photoResponse {
	url := fmt.Sprintf("/api/v1/animals/%s/photos/%s", p.AnimalID, p.ID)
	return photoResponse{
		ID:           p.ID,
		URL:          url,
		ThumbnailURL: url + "/thumbnail",
		Position:     p.Position,
		CreatedAt:    p.CreatedAt.UTC().Format(timeFormat),
	}
}

// toAnimalResponse はDB行と写真をJSONレスポンスに変換する。
func toAnimalResponse(a animaldb.Animal, photos []animaldb.Photo) animalResponse {
	photoResponses := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		photoResponses = append(photoResponses, toPhotoResponse(p))
	}
	return animalResponse{
		ID:          a.ID,
		ShelterID:   a.ShelterID,
		OwnerID:     a.OwnerID,
		Name:        a.Name,
		Species:     a.Species,
		Breed:       a.Breed,
		Sex:         a.Sex,
		AgeMonths:   a.AgeMonths,
		Status:      a.Status,
		City:        a.City,
		Description: a.Description,
		Photos:      photoResponses,
		CreatedAt:   a.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   a.UpdatedAt.UTC().Format(timeFormat),
	}
}

// withPhotos は動物の一覧に写真を付与してレスポンスを組み立てる。
func (s *Server) withPhotos(ctx context.Context, animals []animaldb.Animal) ([]animalResponse, error) {
	ids := make([]string, 0, len(animals))
	for _, a := range animals {
		ids = append(ids, a.ID)
	}
	photos, err := s.queries.ListPhotosByAnimalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byAnimal := make(map[string][]animaldb.Photo, len(animals))
	for _, p := range photos {
		byAnimal[p.AnimalID] = append(byAnimal[p.AnimalID], p)
	}

	responses := make([]animalResponse, 0, len(animals))
	for _, a := range animals {
		responses = append(responses, toAnimalResponse(a, byAnimal[a.ID]))
	}
	return responses, nil
}

// handleList は動物一覧取得を処理するハンドラを返す。
// species, status, city, shelter_id で絞り込み、q で名前・品種・紹介文を部分一致検索する。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := pagination.FromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		species := c.Query("species")
		if species != "" && !slices.Contains(validSpecies, species) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("speciesの値が不正です: %s", species)})
			return
		}
		status := c.Query("status")
		if status != "" && !slices.Contains(validStatuses, status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("statusの値が不正です: %s", status)})
			return
		}

		ctx := c.Request.Context()
		animals, err := s.queries.ListAnimals(ctx, animaldb.ListAnimalsParams{
			Species:   species,
			Status:    status,
			City:      c.Query("city"),
			ShelterID: c.Query("shelter_id"),
			Query:     c.Query("q"),
			Limit:     page.Limit,
			Offset:    page.Offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "動物一覧の取得に失敗しました"})
			s.log.Error("動物一覧取得エラー", zap.Error(err))
			return
		}

		responses, err := s.withPhotos(ctx, animals)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetByID は動物詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadAnimal(c)
		if !ok {
			return
		}
		s.respondAnimal(c, http.StatusOK, a)
	}
}

// shelterInfo はシェルターサービスの内部APIが返すシェルター情報。
type shelterInfo struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	City    string `json:"city"`
}

// handleCreate は動物登録を処理するハンドラを返す。
// 登録先のシェルターはログイン中のユーザーが管理するシェルターとする。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req animalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		var sh shelterInfo
		err := s.shelterClient.GetJSON(httpclient.WithUserID(ctx, userID), "/api/v1/internal/shelters/by-owner/"+userID, &sh)
		if httpclient.IsNotFound(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "動物を登録する前にシェルターを登録してください"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "シェルターサービスとの通信に失敗しました"})
			s.log.Error("シェルター取得エラー", zap.Error(err))
			return
		}

		city := req.City
		if city == "" {
			city = sh.City
		}
		sex := req.Sex
		if sex == "" {
			sex = "unknown"
		}

		animalID := uuid.New().String()
		if err := s.queries.CreateAnimal(ctx, animaldb.CreateAnimalParams{
			ID:          animalID,
			ShelterID:   sh.ID,
			OwnerID:     userID,
			Name:        req.Name,
			Species:     req.Species,
			Breed:       req.Breed,
			Sex:         sex,
			AgeMonths:   req.AgeMonths,
			Status:      req.Status,
			City:        city,
			Description: req.Description,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "動物の登録に失敗しました"})
			s.log.Error("動物登録エラー", zap.Error(err))
			return
		}

		created, err := s.queries.GetAnimalByID(ctx, animalID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録した動物の取得に失敗しました"})
			s.log.Error("動物取得エラー", zap.Error(err))
			return
		}

		s.log.Info("動物を登録しました", zap.String("animal_id", animalID), zap.String("shelter_id", sh.ID))
		c.JSON(http.StatusCreated, toAnimalResponse(created, nil))
	}
}

// handleUpdate は動物の更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadOwnedAnimal(c)
		if !ok {
			return
		}

		var req animalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		sex := req.Sex
		if sex == "" {
			sex = a.Sex
		}
		city := req.City
		if city == "" {
			city = a.City
		}

		ctx := c.Request.Context()
		if err := s.queries.UpdateAnimal(ctx, animaldb.UpdateAnimalParams{
			Name:        req.Name,
			Species:     req.Species,
			Breed:       req.Breed,
			Sex:         sex,
			AgeMonths:   req.AgeMonths,
			Status:      req.Status,
			City:        city,
			Description: req.Description,
			ID:          a.ID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "動物の更新に失敗しました"})
			s.log.Error("動物更新エラー", zap.Error(err))
			return
		}

		updated, err := s.queries.GetAnimalByID(ctx, a.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新後の動物の取得に失敗しました"})
			s.log.Error("動物取得エラー", zap.Error(err))
			return
		}
		s.respondAnimal(c, http.StatusOK, updated)
	}
}

// handleDelete は動物の削除を処理するハンドラを返す。
// データベースの行を削除した後、写真ファイルも削除する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadOwnedAnimal(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		photos, err := s.queries.ListPhotosByAnimalIDs(ctx, []string{a.ID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真一覧取得エラー", zap.Error(err))
			return
		}

		if err := s.queries.DeleteAnimal(ctx, a.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "動物の削除に失敗しました"})
			s.log.Error("動物削除エラー", zap.Error(err))
			return
		}

		for _, p := range photos {
			s.removeFiles(p)
		}

		s.log.Info("動物を削除しました", zap.String("animal_id", a.ID))
		c.JSON(http.StatusOK, gin.H{"message": "動物を削除しました"})
	}
}

// handleUploadPhoto は写真のアップロードを処理するハンドラを返す。
// マルチパートフォームの file を保存し、サムネイルを生成する。
func (s *Server) handleUploadPhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadOwnedAnimal(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		count, maxPosition, err := s.queries.CountPhotos(ctx, a.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真枚数取得エラー", zap.Error(err))
			return
		}
		if count >= maxPhotos {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("写真は%d枚まで登録できます", maxPhotos)})
			return
		}

		// マルチパートフォームからファイルを取得する。
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルの取得に失敗しました: %v", err)})
			return
		}
		defer file.Close()

		if header.Size > maxUploadSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("ファイルサイズが上限を超えています（最大%dMB）", maxUploadSize/(1<<20))})
			return
		}

		obj, err := s.store.Save("animals/"+a.ID, header.Filename, file, maxUploadSize)
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

		thumbKey, err := s.store.Thumbnail(obj.Key, thumbnailSize)
		if errors.Is(err, storage.ErrTooManyPixels) {
			_ = s.store.Remove(obj.Key)
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("画像の解像度が上限を超えています（最大%d画素）", storage.MaxPixels)})
			return
		}
		if err != nil {
			_ = s.store.Remove(obj.Key)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "画像を読み込めませんでした"})
			s.log.Warn("サムネイル生成エラー", zap.String("key", obj.Key), zap.Error(err))
			return
		}

		photo := animaldb.Photo{
			ID:           uuid.New().String(),
			AnimalID:     a.ID,
			Key:          obj.Key,
			ThumbnailKey: thumbKey,
			Position:     maxPosition + 1,
		}
		if err := s.queries.CreatePhoto(ctx, animaldb.CreatePhotoParams{
			ID:           photo.ID,
			AnimalID:     photo.AnimalID,
			Key:          photo.Key,
			ThumbnailKey: photo.ThumbnailKey,
			Position:     photo.Position,
		}); err != nil {
			s.removeFiles(photo)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の登録に失敗しました"})
			s.log.Error("写真登録エラー", zap.Error(err))
			return
		}

		created, err := s.queries.GetPhoto(ctx, a.ID, photo.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録した写真の取得に失敗しました"})
			s.log.Error("写真取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusCreated, toPhotoResponse(created))
	}
}

// handleDeletePhoto は写真の削除を処理するハンドラを返す。
func (s *Server) handleDeletePhoto() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadOwnedAnimal(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		p, err := s.queries.GetPhoto(ctx, a.ID, c.Param("photo_id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "写真が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真取得エラー", zap.Error(err))
			return
		}

		if err := s.queries.DeletePhoto(ctx, p.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の削除に失敗しました"})
			s.log.Error("写真削除エラー", zap.Error(err))
			return
		}
		s.removeFiles(p)

		c.JSON(http.StatusOK, gin.H{"message": "写真を削除しました"})
	}
}

// handleGetPhotoFile は写真ファイルまたはサムネイルを返すハンドラを返す。
func (s *Server) handleGetPhotoFile(thumbnail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.queries.GetPhoto(c.Request.Context(), c.Param("id"), c.Param("photo_id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "写真が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真取得エラー", zap.Error(err))
			return
		}

		key := p.Key
		if thumbnail {
			key = p.ThumbnailKey
		}
		path, err := s.store.Path(key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真パス解決エラー", zap.String("key", key), zap.Error(err))
			return
		}

		c.Header("Cache-Control", "public, max-age=86400")
		c.File(path)
	}
}

// handleAddFavorite は動物をお気に入りに追加するハンドラを返す。
// 既に追加済みの場合も成功として扱う。
func (s *Server) handleAddFavorite() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := s.loadAnimal(c)
		if !ok {
			return
		}

		if err := s.queries.AddFavorite(c.Request.Context(), middleware.GetUserID(c), a.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "お気に入りの追加に失敗しました"})
			s.log.Error("お気に入り追加エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"animal_id": a.ID, "favorite": true})
	}
}

// handleRemoveFavorite は動物をお気に入りから外すハンドラを返す。
func (s *Server) handleRemoveFavorite() gin.HandlerFunc {
	return func(c *gin.Context) {
		animalID := c.Param("id")
		if err := s.queries.RemoveFavorite(c.Request.Context(), middleware.GetUserID(c), animalID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "お気に入りの削除に失敗しました"})
			s.log.Error("お気に入り削除エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"animal_id": animalID, "favorite": false})
	}
}

// handleListFavorites はログイン中のユーザーのお気に入り一覧を返すハンドラを返す。
func (s *Server) handleListFavorites() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		animals, err := s.queries.ListFavoriteAnimals(ctx, middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "お気に入り一覧の取得に失敗しました"})
			s.log.Error("お気に入り一覧取得エラー", zap.Error(err))
			return
		}

		responses, err := s.withPhotos(ctx, animals)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleInternalListByShelter はシェルターに所属する動物を返す内部APIハンドラを返す。
// ゲートウェイのシェルター向けダッシュボードから呼び出される。
func (s *Server) handleInternalListByShelter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		animals, err := s.queries.ListAnimalsByShelter(ctx, c.Param("shelter_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "動物一覧の取得に失敗しました"})
			s.log.Error("動物一覧取得エラー", zap.Error(err))
			return
		}

		responses, err := s.withPhotos(ctx, animals)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
			s.log.Error("写真一覧取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, responses)
	}
}

// respondAnimal は写真付きの動物をレスポンスとして返す。
func (s *Server) respondAnimal(c *gin.Context, status int, a animaldb.Animal) {
	responses, err := s.withPhotos(c.Request.Context(), []animaldb.Animal{a})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写真の取得に失敗しました"})
		s.log.Error("写真一覧取得エラー", zap.Error(err))
		return
	}
	c.JSON(status, responses[0])
}

// loadAnimal はパスパラメータの動物を取得する。
// 見つからない場合やエラーの場合はレスポンスを書き込み、falseを返す。
func (s *Server) loadAnimal(c *gin.Context) (animaldb.Animal, bool) {
	a, err := s.queries.GetAnimalByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "動物が見つかりません"})
		return animaldb.Animal{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "動物の取得に失敗しました"})
		s.log.Error("動物取得エラー", zap.Error(err))
		return animaldb.Animal{}, false
	}
	return a, true
}

// loadOwnedAnimal はパスパラメータの動物を取得し、登録者であることを確認する。
func (s *Server) loadOwnedAnimal(c *gin.Context) (animaldb.Animal, bool) {
	a, ok := s.loadAnimal(c)
	if !ok {
		return animaldb.Animal{}, false
	}
	if a.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "この動物へのアクセス権がありません"})
		return animaldb.Animal{}, false
	}
	return a, true
}

// removeFiles は写真ファイルとサムネイルを削除する。失敗はログに記録して続行する。
func (s *Server) removeFiles(p animaldb.Photo) {
	for _, key := range []string{p.Key, p.ThumbnailKey} {
		if err := s.store.Remove(key); err != nil {
			s.log.Warn("写真ファイルの削除に失敗", zap.String("key", key), zap.Error(err))
		}
	}
}
