package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/findtail/pkg/httpclient"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// dashboard はダッシュボードの各セクションの取得結果を集める。
// 取得に失敗したセクションはerrorsに記録し、値は空のままにする。
type dashboard struct {
	mu       sync.Mutex
	sections map[string]json.RawMessage
	errors   map[string]string
}

func newDashboard() *dashboard {
	return &dashboard{
		sections: make(map[string]json.RawMessage),
		errors:   make(map[string]string),
	}
}

func (d *dashboard) set(name string, value json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sections[name] = value
}

func (d *dashboard) fail(name, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors[name] = message
}

// fetch はクライアントからJSONを取得してセクションに設定する。
// 失敗してもエラーを返さず、他のセクションの取得は続行する。
func (s *Server) fetch(ctx context.Context, d *dashboard, name string, client *httpclient.Client, path string) func() error {
	return func() error {
		var raw json.RawMessage
		if err := client.GetJSON(ctx, path, &raw); err != nil {
			s.log.Warn("ダッシュボードのセクション取得に失敗", zap.String("section", name), zap.Error(err))
			d.fail(name, "取得に失敗しました")
			return nil
		}
		d.set(name, raw)
		return nil
	}
}

// myShelter はダッシュボードのために取得するシェルターの項目。
type myShelter struct {
	ID string `json:"id"`
}

// handleDashboard はロール別のダッシュボードを返すハンドラを返す。
//
// ボランティア: お気に入り、自分の発見報告、自分の寄付、未読数。
// シェルター: 自分のシェルター、その動物、振り分けられた発見報告、寄付の集計、未読数。
// 各セクションは並行して取得し、失敗したセクションはerrorsに記録する。
func (s *Server) handleDashboard() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := middleware.GetRole(c)
		ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
		ctx = httpclient.WithAuthorization(ctx, c.GetHeader("Authorization"))

		d := newDashboard()
		g, gctx := errgroup.WithContext(ctx)

		switch role {
		case middleware.RoleShelter:
			var shelter myShelter
			var shelterRaw json.RawMessage
			err := s.clients.shelter.GetJSON(ctx, "/api/v1/shelters/mine", &shelterRaw)
			switch {
			case httpclient.IsNotFound(err):
				// シェルター未登録の場合は他のセクションも空にする
				d.set("shelter", json.RawMessage("null"))
			case err != nil:
				s.log.Warn("ダッシュボードのセクション取得に失敗", zap.String("section", "shelter"), zap.Error(err))
				d.fail("shelter", "取得に失敗しました")
			default:
				d.set("shelter", shelterRaw)
				if err := json.Unmarshal(shelterRaw, &shelter); err != nil {
					d.fail("shelter", "シェルター情報が不正です")
				}
			}

			if shelter.ID != "" {
				g.Go(s.fetch(gctx, d, "animals", s.clients.animal, "/api/v1/internal/animals/by-shelter/"+shelter.ID))
				g.Go(s.fetch(gctx, d, "reports", s.clients.report, "/api/v1/reports/shelter"))
				g.Go(s.fetch(gctx, d, "donations", s.clients.donation, "/api/v1/shelters/"+shelter.ID+"/donations"))
			}
		default:
			g.Go(s.fetch(gctx, d, "favorites", s.clients.animal, "/api/v1/favorites"))
			g.Go(s.fetch(gctx, d, "reports", s.clients.report, "/api/v1/reports/mine"))
			g.Go(s.fetch(gctx, d, "donations", s.clients.donation, "/api/v1/donations/mine"))
		}
		g.Go(s.fetch(gctx, d, "unread", s.clients.messaging, "/api/v1/conversations/unread-count"))

		// fetchはエラーを返さないため、Waitは常にnilになる
		_ = g.Wait()

		c.JSON(http.StatusOK, gin.H{
			"role":     role,
			"sections": d.sections,
			"errors":   d.errors,
		})
	}
}
