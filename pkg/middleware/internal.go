package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderInternalToken はサービス間の内部API呼び出しで共有トークンを渡すヘッダー。
const HeaderInternalToken = "X-Internal-Token"

// InternalAuth は内部APIを保護するGinミドルウェアを返す。
// X-Internal-Tokenヘッダーが設定値と一致しない場合は401を返す。
func InternalAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderInternalToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "内部APIへのアクセスが拒否されました",
			})
			return
		}
		// 呼び出し元が伝播したユーザーIDをコンテキストに設定する
		if userID := c.GetHeader(headerKeyUserID); userID != "" {
			c.Set(contextKeyUserID, userID)
		}
		c.Next()
	}
}
