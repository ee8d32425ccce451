package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gatewaydb "github.com/nao1215/findtail/internal/gateway/db"
	"github.com/nao1215/findtail/pkg/database"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost はパスワードハッシュの計算コスト。
var bcryptCost = bcrypt.DefaultCost

// errInvalidCredentials はメールアドレスかパスワードが誤っている場合のメッセージ。
// 登録済みのメールアドレスかどうかを推測されないよう、どちらの場合も同じにする。
const errInvalidCredentials = "メールアドレスまたはパスワードが正しくありません"

// signUpRequest はユーザー登録リクエストのJSON構造。
type signUpRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	Role        string `json:"role" binding:"required,oneof=volunteer shelter"`
	DisplayName string `json:"display_name" binding:"required,max=100"`
	Phone       string `json:"phone" binding:"max=30"`
	City        string `json:"city" binding:"max=100"`
}

// signInRequest はサインインリクエストのJSON構造。
type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// devTokenRequest は開発用トークン発行リクエストのJSON構造。
type devTokenRequest struct {
	// Role は開発ユーザーの種別。省略時はvolunteer。
	Role string `json:"role" binding:"omitempty,oneof=volunteer shelter"`
}

// normalizeEmail はメールアドレスを比較用に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issueSession はセッションを作成し、そのセッションIDを含むJWTを発行する。
func (s *Server) issueSession(ctx context.Context, p gatewaydb.Profile) (string, gatewaydb.Session, error) {
	session, err := s.queries.CreateSession(ctx, gatewaydb.CreateSessionParams{
		ID:        uuid.New().String(),
		UserID:    p.ID,
		ExpiresAt: time.Now().Add(middleware.TokenTTL),
	})
	if err != nil {
		return "", gatewaydb.Session{}, fmt.Errorf("セッションの作成に失敗: %w", err)
	}

	token, err := middleware.GenerateJWT(s.jwtSecret, middleware.Identity{
		UserID:    p.ID,
		Email:     p.Email,
		Role:      p.Role,
		SessionID: session.ID,
	})
	if err != nil {
		return "", gatewaydb.Session{}, err
	}
	return token, session, nil
}

// respondWithSession はトークンとプロフィールをレスポンスとして返す。
func respondWithSession(c *gin.Context, status int, token string, session gatewaydb.Session, p gatewaydb.Profile) {
	c.JSON(status, gin.H{
		"token":      token,
		"expires_at": session.ExpiresAt.UTC().Format(timeFormat),
		"session":    toSessionResponse(session),
		"profile":    toProfileResponse(p),
	})
}

// handleSignUp はメールアドレスとパスワードでユーザーを登録するハンドラを返す。
// 登録と同時にサインインした状態のトークンを返す。
func (s *Server) handleSignUp() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "表示名が空です"})
			return
		}

		ctx := c.Request.Context()
		email := normalizeEmail(req.Email)
		_, err := s.queries.GetProfileByEmail(ctx, email)
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			s.log.Error("パスワードハッシュ生成エラー", zap.Error(err))
			return
		}

		userID := uuid.New().String()
		if err := s.queries.CreateProfile(ctx, gatewaydb.CreateProfileParams{
			ID:           userID,
			Email:        email,
			PasswordHash: string(hash),
			Role:         req.Role,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			Phone:        strings.TrimSpace(req.Phone),
			City:         strings.TrimSpace(req.City),
		}); err != nil {
			// 存在確認の後に同じメールアドレスで登録された場合
			if database.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			s.log.Error("プロフィール作成エラー", zap.Error(err))
			return
		}

		p, err := s.queries.GetProfileByID(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登録したユーザーの取得に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}

		token, session, err := s.issueSession(ctx, p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			s.log.Error("セッション発行エラー", zap.Error(err))
			return
		}

		s.log.Info("ユーザーを登録しました", zap.String("user_id", p.ID), zap.String("role", p.Role))
		respondWithSession(c, http.StatusCreated, token, session, p)
	}
}

// handleSignIn はメールアドレスとパスワードでサインインするハンドラを返す。
func (s *Server) handleSignIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signInRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		p, err := s.queries.GetProfileByEmail(ctx, normalizeEmail(req.Email))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "サインインに失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
			return
		}

		if err := s.queries.UpdateLastLogin(ctx, p.ID); err != nil {
			s.log.Warn("最終ログイン日時の更新に失敗", zap.String("user_id", p.ID), zap.Error(err))
		}

		token, session, err := s.issueSession(ctx, p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			s.log.Error("セッション発行エラー", zap.Error(err))
			return
		}

		respondWithSession(c, http.StatusOK, token, session, p)
	}
}

// handleRefresh は現在のセッションを失効させ、新しいセッションのトークンを発行するハンドラを返す。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p, err := s.queries.GetProfileByID(ctx, middleware.GetUserID(c))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの更新に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}

		if _, err := s.queries.RevokeSession(ctx, middleware.GetSessionID(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの更新に失敗しました"})
			s.log.Error("セッション失効エラー", zap.Error(err))
			return
		}

		token, session, err := s.issueSession(ctx, p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			s.log.Error("セッション発行エラー", zap.Error(err))
			return
		}

		respondWithSession(c, http.StatusOK, token, session, p)
	}
}

// handleSignOut は現在のセッションを失効させるハンドラを返す。
func (s *Server) handleSignOut() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.queries.RevokeSession(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "サインアウトに失敗しました"})
			s.log.Error("セッション失効エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "サインアウトしました"})
	}
}

// handleDevToken は開発用のユーザーとトークンを発行するハンドラを返す。
// 開発モードでのみ有効で、それ以外では404を返す。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.devMode {
			c.JSON(http.StatusNotFound, gin.H{"error": "開発モードではありません"})
			return
		}

		var req devTokenRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
				return
			}
		}
		if req.Role == "" {
			req.Role = middleware.RoleVolunteer
		}

		ctx := c.Request.Context()
		email := "dev-" + req.Role + "@localhost"

		// 開発用ユーザーが存在しなければ作成
		p, err := s.queries.GetProfileByEmail(ctx, email)
		if errors.Is(err, sql.ErrNoRows) {
			hash, hashErr := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcryptCost)
			if hashErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
				s.log.Error("パスワードハッシュ生成エラー", zap.Error(hashErr))
				return
			}
			userID := uuid.New().String()
			if err := s.queries.CreateProfile(ctx, gatewaydb.CreateProfileParams{
				ID:           userID,
				Email:        email,
				PasswordHash: string(hash),
				Role:         req.Role,
				DisplayName:  "開発ユーザー",
			}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
				s.log.Error("開発ユーザー作成エラー", zap.Error(err))
				return
			}
			p, err = s.queries.GetProfileByID(ctx, userID)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			s.log.Error("開発ユーザー取得エラー", zap.Error(err))
			return
		}

		token, session, err := s.issueSession(ctx, p)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			s.log.Error("セッション発行エラー", zap.Error(err))
			return
		}

		respondWithSession(c, http.StatusOK, token, session, p)
	}
}
