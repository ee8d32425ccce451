// Package pagination は一覧APIのlimit/offsetクエリパラメータを解釈する。
package pagination

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit はlimit未指定時の件数。
	DefaultLimit = 20
	// MaxLimit はlimitの上限。これを超える値は上限に丸める。
	MaxLimit = 100
)

// Page は一覧取得の範囲。
type Page struct {
	Limit  int64
	Offset int64
}

// FromQuery はクエリパラメータ limit と offset からPageを生成する。
// 数値でない値や負の値はエラーになる。
func FromQuery(c *gin.Context) (Page, error) {
	p := Page{Limit: DefaultLimit}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Page{}, fmt.Errorf("limitの値が不正です: %q", v)
		}
		p.Limit = min(n, MaxLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return Page{}, fmt.Errorf("offsetの値が不正です: %q", v)
		}
		p.Offset = n
	}
	return p, nil
}
