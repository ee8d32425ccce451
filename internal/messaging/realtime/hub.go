// Package realtime はユーザーごとのイベント配信ハブを提供する。
//
// WebSocket接続ごとに購読を作成し、そのユーザー宛てのイベントを受け取る。
// 購読者の受信が追いつかない場合、イベントは破棄され、発行側はブロックしない。
package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/nao1215/findtail/pkg/event"
)

// DefaultBufferSize は購読ごとのイベントバッファのデフォルトサイズ。
const DefaultBufferSize = 16

// Hub はユーザーIDごとの購読を管理する。ゼロ値は使用できない。
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
	dropped    atomic.Uint64
}

// NewHub はハブを生成する。bufferSizeが0以下の場合はDefaultBufferSizeを使用する。
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       make(map[string]map[*Subscription]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscription はひとつの接続の購読。
type Subscription struct {
	hub    *Hub
	userID string
	events chan event.Event
	once   sync.Once
}

// Subscribe はユーザー宛てのイベントの購読を開始する。
// 使い終わったら必ずCloseを呼び出すこと。
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		hub:    h,
		userID: userID,
		events: make(chan event.Event, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

// Events はイベントを受信するチャネルを返す。Close後に閉じられる。
func (s *Subscription) Events() <-chan event.Event {
	return s.events
}

// UserID は購読しているユーザーのIDを返す。
func (s *Subscription) UserID() string {
	return s.userID
}

// Close は購読を解除する。複数回呼び出しても安全。
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()

		if subs, ok := h.subs[s.userID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.subs, s.userID)
			}
		}
		// Publishは読み取りロック中に送信するため、書き込みロック中に閉じれば競合しない。
		close(s.events)
	})
}

// Publish はユーザーの全購読にイベントを送信し、配信できた購読の数を返す。
// バッファが満杯の購読には送らずに破棄する。
func (h *Hub) Publish(userID string, e event.Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[userID] {
		select {
		case sub.events <- e:
			delivered++
		default:
			h.dropped.Add(1)
		}
	}
	return delivered
}

// SubscriberCount はユーザーの購読数を返す。
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Dropped はバッファ満杯で破棄したイベントの累計数を返す。
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
