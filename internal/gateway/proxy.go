package gateway

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
)

// forwardedResponseHeaders は内部サービスのレスポンスからクライアントに返すヘッダー。
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Disposition",
	"Cache-Control",
	"Last-Modified",
	"ETag",
}

// setupProxyRoutes は各サービスへのプロキシルートを設定する。
// 公開ルートはトークン無しで転送し、それ以外はsecuredグループでセッションを確認してから転送する。
// リアルタイム配信のWebSocketはフロントエンドからメッセージングサービスに直接接続する。
func (s *Server) setupProxyRoutes(public, secured *gin.RouterGroup) {
	shelter := s.proxyTo(s.services.Shelter)
	animal := s.proxyTo(s.services.Animal)
	report := s.proxyTo(s.services.Report)
	donation := s.proxyTo(s.services.Donation)
	messaging := s.proxyTo(s.services.Messaging)

	// シェルター
	public.GET("/shelters", shelter)
	public.GET("/shelters/:id", shelter)
	secured.GET("/shelters/mine", shelter)
	secured.POST("/shelters", shelter)
	secured.PUT("/shelters/:id", shelter)
	secured.DELETE("/shelters/:id", shelter)

	// 動物と写真
	public.GET("/animals", animal)
	public.GET("/animals/:id", animal)
	public.GET("/animals/:id/photos/:photo_id", animal)
	public.GET("/animals/:id/photos/:photo_id/thumbnail", animal)
	secured.POST("/animals", animal)
	secured.PUT("/animals/:id", animal)
	secured.DELETE("/animals/:id", animal)
	secured.POST("/animals/:id/photos", animal)
	secured.DELETE("/animals/:id/photos/:photo_id", animal)

	// お気に入り
	secured.GET("/favorites", animal)
	secured.POST("/animals/:id/favorite", animal)
	secured.DELETE("/animals/:id/favorite", animal)

	// 発見報告
	public.GET("/reports", report)
	public.GET("/reports/:id/photo", report)
	secured.POST("/reports", report)
	secured.GET("/reports/mine", report)
	secured.GET("/reports/shelter", report)
	secured.GET("/reports/:id", report)
	secured.PUT("/reports/:id/status", report)
	secured.POST("/reports/:id/photo", report)

	// 寄付
	secured.POST("/donations", donation)
	secured.GET("/donations/mine", donation)
	secured.GET("/shelters/:id/donations", donation)

	// メッセージと会話
	secured.POST("/messages", messaging)
	secured.GET("/conversations", messaging)
	secured.GET("/conversations/unread-count", messaging)
	secured.GET("/conversations/:id", messaging)
	secured.POST("/conversations/:id/read", messaging)

	// 通知
	secured.GET("/notifications", messaging)
	secured.GET("/notifications/unread", messaging)
	secured.PUT("/notifications/:id/read", messaging)
	secured.PUT("/notifications/read-all", messaging)

	// 問い合わせ
	public.POST("/contact", messaging)
}

// proxyTo は同じパスのまま指定されたサービスにリクエストを転送するハンドラを返す。
func (s *Server) proxyTo(baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := baseURL + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			url += "?" + c.Request.URL.RawQuery
		}
		s.doProxy(c, url)
	}
}

// doProxy はリクエストを内部サービスにプロキシする共通処理。
// ボディはバッファせずにそのまま転送し、JWTトークンとユーザーIDヘッダーを引き継ぐ。
func (s *Server) doProxy(c *gin.Context, url string) {
	var body io.Reader = c.Request.Body
	if c.Request.ContentLength == 0 {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, url, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "プロキシリクエストの作成に失敗しました"})
		return
	}
	req.ContentLength = c.Request.ContentLength

	// 元のリクエストヘッダーを転送
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if userID := middleware.GetUserID(c); userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
		s.log.Error("プロキシエラー", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	for _, h := range forwardedResponseHeaders {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		s.log.Warn("プロキシレスポンスの転送に失敗", zap.String("url", url), zap.Error(err))
	}
}
