package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nao1215/findtail/pkg/event"
	"github.com/nao1215/findtail/pkg/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// writeTimeout は1件のイベントをWebSocketに書き込む際のタイムアウト。
const writeTimeout = 10 * time.Second

// realtimePath はWebSocket接続のパス。
// Ginのレスポンスライターはヘッダー書き込み後のHijackを拒否するため、
// このパスだけはGinを通さずnet/httpのハンドラで受け付ける。
const realtimePath = "/api/v1/realtime"

// handleRealtime はWebSocket接続を受け付け、ユーザー宛てのイベントを配信するハンドラ。
// クライアントからのメッセージは読み捨て、切断されるまでイベントを書き込み続ける。
func (s *Server) handleRealtime() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, problem := s.authenticate(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, problem)
			return
		}

		// ハンドシェイク完了前に購読しておき、接続直後のイベントを取りこぼさない。
		sub := s.hub.Subscribe(userID)
		defer sub.Close()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: s.originPatterns,
		})
		if err != nil {
			s.log.Warn("WebSocket接続の確立に失敗", zap.String("user_id", userID), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusInternalError, "")

		s.log.Info("リアルタイム接続を開始しました", zap.String("user_id", userID))
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				s.log.Info("リアルタイム接続を終了しました", zap.String("user_id", userID))
				return
			case e, ok := <-sub.Events():
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				if err := writeEvent(ctx, conn, e); err != nil {
					s.log.Warn("イベントの送信に失敗", zap.String("user_id", userID), zap.Error(err))
					return
				}
			}
		}
	}
}

// authenticate はリクエストのトークンを検証してユーザーIDを返す。
// 検証に失敗した場合は理由を2番目の戻り値で返す。
func (s *Server) authenticate(r *http.Request) (string, string) {
	token, problem := middleware.TokenFromRequest(r)
	if problem != "" {
		return "", problem
	}
	claims, err := middleware.ParseJWT(s.jwtSecret, token)
	if err != nil {
		return "", "トークンが無効です"
	}
	return claims.UserID, ""
}

// writeError はGinを通さないハンドラからJSONのエラーレスポンスを返す。
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEvent はイベントをCloudEvents JSONとして1フレームで送信する。
func writeEvent(ctx context.Context, conn *websocket.Conn, e event.Event) error {
	data, err := event.Encode(e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
