package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gatewaydb "github.com/nao1215/findtail/internal/gateway/db"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
)

// maxProfileIDs は内部APIで一度に取得できるプロフィールの最大数。
const maxProfileIDs = 100

// profileResponse は本人向けのプロフィールのJSONレスポンス構造。
type profileResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	City        string `json:"city"`
	AvatarURL   string `json:"avatar_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

func toProfileResponse(p gatewaydb.Profile) profileResponse {
	resp := profileResponse{
		ID:          p.ID,
		Email:       p.Email,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
		City:        p.City,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   p.UpdatedAt.UTC().Format(timeFormat),
	}
	if p.LastLoginAt.Valid {
		resp.LastLoginAt = p.LastLoginAt.Time.UTC().Format(timeFormat)
	}
	return resp
}

// publicProfileResponse は他のユーザーに公開するプロフィール。連絡先は含めない。
type publicProfileResponse struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	City        string `json:"city"`
	AvatarURL   string `json:"avatar_url"`
	CreatedAt   string `json:"created_at"`
}

func toPublicProfileResponse(p gatewaydb.Profile) publicProfileResponse {
	return publicProfileResponse{
		ID:          p.ID,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		City:        p.City,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt.UTC().Format(timeFormat),
	}
}

// sessionResponse はセッションのJSONレスポンス構造。
type sessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

func toSessionResponse(s gatewaydb.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.UTC().Format(timeFormat),
		ExpiresAt: s.ExpiresAt.UTC().Format(timeFormat),
	}
}

// updateProfileRequest はプロフィール更新リクエストのJSON構造。
// 指定された項目だけを更新する。
type updateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,min=1,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=30"`
	City        *string `json:"city" binding:"omitempty,max=100"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,max=500"`
}

// handleGetMe は現在のセッションとプロフィールを返すハンドラを返す。
func (s *Server) handleGetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p, err := s.queries.GetProfileByID(ctx, middleware.GetUserID(c))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー情報の取得に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}
		session, err := s.queries.GetSession(ctx, middleware.GetSessionID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの取得に失敗しました"})
			s.log.Error("セッション取得エラー", zap.Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session": toSessionResponse(session),
			"profile": toProfileResponse(p),
		})
	}
}

// handleUpdateMe はプロフィールを更新するハンドラを返す。
func (s *Server) handleUpdateMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)
		p, err := s.queries.GetProfileByID(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー情報の取得に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}

		params := gatewaydb.UpdateProfileParams{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Phone:       p.Phone,
			City:        p.City,
			AvatarURL:   p.AvatarURL,
		}
		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "表示名が空です"})
				return
			}
			params.DisplayName = name
		}
		if req.Phone != nil {
			params.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.City != nil {
			params.City = strings.TrimSpace(*req.City)
		}
		if req.AvatarURL != nil {
			params.AvatarURL = strings.TrimSpace(*req.AvatarURL)
		}

		if err := s.queries.UpdateProfile(ctx, params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの更新に失敗しました"})
			s.log.Error("プロフィール更新エラー", zap.Error(err))
			return
		}

		updated, err := s.queries.GetProfileByID(ctx, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "更新したプロフィールの取得に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toProfileResponse(updated))
	}
}

// handleGetProfile は公開プロフィールを返すハンドラを返す。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.queries.GetProfileByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの取得に失敗しました"})
			s.log.Error("プロフィール取得エラー", zap.Error(err))
			return
		}
		c.JSON(http.StatusOK, toPublicProfileResponse(p))
	}
}

// handleInternalProfiles はカンマ区切りのIDで指定されたプロフィールを返すハンドラを返す。
// メッセージングサービスが会話相手の表示名を解決するために使用する。
func (s *Server) handleInternalProfiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []string
		seen := make(map[string]struct{})
		for id := range strings.SplitSeq(c.Query("ids"), ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) > maxProfileIDs {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("IDは%d件まで指定できます", maxProfileIDs)})
			return
		}

		profiles, err := s.queries.ListProfilesByIDs(c.Request.Context(), ids)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの取得に失敗しました"})
			s.log.Error("プロフィール一覧取得エラー", zap.Error(err))
			return
		}

		responses := make([]publicProfileResponse, 0, len(profiles))
		for _, p := range profiles {
			responses = append(responses, toPublicProfileResponse(p))
		}
		c.JSON(http.StatusOK, responses)
	}
}
