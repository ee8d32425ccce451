package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultCORSMaxAge はプリフライト結果をブラウザにキャッシュさせる既定の時間。
const defaultCORSMaxAge = 24 * time.Hour

// CORSConfig はフロントエンドからのクロスオリジンアクセスの許可設定。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン（scheme://host[:port]）。
	AllowedOrigins []string
	// AllowCredentials はCookie付きリクエストを許可するかどうか。
	AllowCredentials bool
	// MaxAge はプリフライト結果のキャッシュ時間。0の場合は既定値を使う。
	MaxAge time.Duration
}

// FrontendCORS はフロントエンドURLからCORS設定を組み立てる。
// カンマ区切りで複数指定でき、パスや末尾のスラッシュは取り除いてオリジンに正規化する。
// URLとして解釈できない値は無視する。
func FrontendCORS(frontendURL string) CORSConfig {
	var origins []string
	for raw := range strings.SplitSeq(frontendURL, ",") {
		if origin, ok := normalizeOrigin(strings.TrimSpace(raw)); ok {
			origins = append(origins, origin)
		}
	}
	return CORSConfig{AllowedOrigins: origins}
}

// normalizeOrigin はURLをブラウザが送るOriginヘッダーの形式にそろえる。
func normalizeOrigin(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// CORS は設定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// プリフライトは204で応答し、後続のハンドラーには渡さない。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originsSet[strings.ToLower(o)] = struct{}{}
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		c.Header("Vary", "Origin")

		origin := c.GetHeader("Origin")
		_, allowed := originsSet[strings.ToLower(origin)]
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			if allowed {
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Max-Age", maxAgeSeconds)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
