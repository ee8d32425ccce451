package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ユーザーの種別。プロフィールに保存され、JWTクレームで各サービスに伝播する。
const (
	// RoleVolunteer はボランティア（個人）アカウント。
	RoleVolunteer = "volunteer"
	// RoleShelter はシェルター（団体）アカウント。
	RoleShelter = "shelter"
)

// tokenIssuer はJWTの発行者。
const tokenIssuer = "findtail-gateway"

// TokenTTL はJWTの有効期間。
const TokenTTL = 24 * time.Hour

// Ginコンテキストのキー。
const (
	contextKeyUserID    = "user_id"
	contextKeyEmail     = "email"
	contextKeyRole      = "role"
	contextKeySessionID = "session_id"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID等の情報をサービス間で伝播するために使用する。
// セッションIDはRegisteredClaims.ID（jti）に格納する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーの種別（volunteer または shelter）。
	Role string `json:"role"`
}

// Identity はトークンに載せるユーザー情報。
type Identity struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// gatewayサービスがサインイン・トークン更新時に呼び出す。
func GenerateJWT(secret string, id Identity) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証してクレームを返す。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("トークンが無効です")
	}
	return claims, nil
}

// TokenFromRequest はリクエストからトークン文字列を取り出す。
// 取り出せない場合は理由を2番目の戻り値で返す。
// ブラウザのWebSocketはヘッダーを設定できないため、
// アップグレード要求に限りaccess_tokenクエリパラメータも受け付ける。
func TokenFromRequest(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if isWebSocketUpgrade(r) {
			if token := r.URL.Query().Get("access_token"); token != "" {
				return token, ""
			}
		}
		return "", "Authorizationヘッダーが必要です"
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", "Bearer トークン形式が不正です"
	}
	return tokenString, ""
}

// isWebSocketUpgrade はWebSocketへのアップグレード要求かどうかを判定する。
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// setIdentity はクレームの内容をGinコンテキストに設定する。
func setIdentity(c *gin.Context, claims *JWTClaims) {
	c.Set(contextKeyUserID, claims.UserID)
	c.Set(contextKeyEmail, claims.Email)
	c.Set(contextKeyRole, claims.Role)
	c.Set(contextKeySessionID, claims.ID)
	c.Header(headerKeyUserID, claims.UserID)
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"email"、"role"、"session_id" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := TokenFromRequest(c.Request)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalJWTAuth はトークンがあれば検証してユーザー情報を設定するミドルウェアを返す。
// 公開エンドポイントでログイン中のユーザーを識別するために使用する。
// トークンが不正な場合は401を返す。
func OptionalJWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		JWTAuth(secret)(c)
	}
}

// RequireRole は指定された種別のユーザーのみ許可するミドルウェアを返す。
// JWTAuthミドルウェアの後に適用する必要がある。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, GetRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "この操作を行う権限がありません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return getString(c, contextKeyUserID)
}

// GetRole はGinコンテキストからユーザー種別を取得する。
func GetRole(c *gin.Context) string {
	return getString(c, contextKeyRole)
}

// GetSessionID はGinコンテキストからセッションIDを取得する。
func GetSessionID(c *gin.Context) string {
	return getString(c, contextKeySessionID)
}

func getString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// ValidRole はユーザー種別として有効な値かどうかを判定する。
func ValidRole(role string) bool {
	return role == RoleVolunteer || role == RoleShelter
}
