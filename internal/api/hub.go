package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-progress/internal/roster"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

// Hub fans roster events out to websocket subscribers. It implements
// roster.EventLogger so the store can publish straight into it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	origins     []string
}

type subscriber struct {
	events chan roster.Event
}

// NewHub creates a hub. originPatterns are passed to the websocket
// handshake; leave empty to allow same-origin connections only.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		origins:     originPatterns,
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// LogEvent broadcasts event to every subscriber. Subscribers whose buffer
// is full miss the event rather than block the reload.
func (h *Hub) LogEvent(event roster.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			slog.Warn("websocket subscriber lagging, event dropped", "type", event.Type)
		}
	}
	return nil
}

func (h *Hub) register() *subscriber {
	sub := &subscriber{events: make(chan roster.Event, subscriberBuffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	slog.Info("websocket subscriber registered", "subscribers", n)
	return sub
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	n := len(h.subscribers)
	h.mu.Unlock()
	slog.Info("websocket subscriber left", "subscribers", n)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects or the request context ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.register()
	defer h.unregister(sub)

	// Clients only listen; CloseRead handles their control frames and
	// cancels ctx once they go away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-sub.events:
			if err := writeEvent(ctx, conn, event); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event roster.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}
