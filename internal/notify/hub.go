package notify

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinic-appointments/internal/session"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

const subscriberBuffer = 16

// StreamMessage is written to WebSocket subscribers.
type StreamMessage struct {
	Type          string         `json:"type"` // "snapshot", "notification", "pong", "error"
	Notification  *Notification  `json:"notification,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
	Error         string         `json:"error,omitempty"`
}

type inboundMessage struct {
	Type string `json:"type"`
}

// Hub decorates a Feed and pushes every shown notification to the live
// subscribers of its session.
type Hub struct {
	feed   Feed
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[chan Notification]struct{}
}

// NewHub wraps feed.
func NewHub(feed Feed, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{feed: feed, logger: logger, subs: make(map[string]map[chan Notification]struct{})}
}

// Show stores the notification in the feed and broadcasts it.
func (h *Hub) Show(ctx context.Context, message string, severity Severity) (Notification, error) {
	n, err := h.feed.Show(ctx, message, severity)
	if err != nil {
		return Notification{}, err
	}
	h.broadcast(n)
	return n, nil
}

func (h *Hub) Active(ctx context.Context, sessionID string) ([]Notification, error) {
	return h.feed.Active(ctx, sessionID)
}

func (h *Hub) Dismiss(ctx context.Context, sessionID, id string) error {
	return h.feed.Dismiss(ctx, sessionID, id)
}

// Subscribe registers a listener for sessionID. The returned func releases it
// and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Notification, func()) {
	ch := make(chan Notification, subscriberBuffer)
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Notification]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live listeners for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) broadcast(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[n.SessionID] {
		select {
		case ch <- n:
		default:
			h.logger.Warn("notification dropped for slow subscriber", "session_id", n.SessionID, "notification_id", n.ID)
		}
	}
}

// ServeStream upgrades to a WebSocket and streams notifications for the
// session carried by the request context.
func (h *Hub) ServeStream(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := session.IDFromContext(r.Context())
	if !ok {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, sessionID)
	}).ServeHTTP(w, r)
}

func (h *Hub) serveWS(ctx context.Context, conn *websocket.Conn, sessionID string) {
	updates, unsubscribe := h.Subscribe(sessionID)
	defer unsubscribe()

	active, err := h.feed.Active(ctx, sessionID)
	if err != nil {
		h.logger.Error("notification stream: load active failed", "session_id", sessionID, "error", err)
		_ = websocket.JSON.Send(conn, StreamMessage{Type: "error", Error: "notifications unavailable"})
		return
	}
	if err := websocket.JSON.Send(conn, StreamMessage{Type: "snapshot", Notifications: active}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	inbound := make(chan inboundMessage)
	go func() {
		defer close(inbound)
		for {
			var msg inboundMessage
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			select {
			case inbound <- msg:
			case <-done:
				return
			}
		}
	}()

	h.logger.Debug("notification stream opened", "session_id", sessionID)
	for {
		select {
		case n, ok := <-updates:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, StreamMessage{Type: "notification", Notification: &n}); err != nil {
				h.logger.Debug("notification stream closed", "session_id", sessionID, "error", err)
				return
			}
		case msg, ok := <-inbound:
			if !ok {
				h.logger.Debug("notification stream closed by client", "session_id", sessionID)
				return
			}
			if msg.Type == "ping" {
				_ = websocket.JSON.Send(conn, StreamMessage{Type: "pong"})
			}
		case <-ctx.Done():
			return
		}
	}
}

var _ Feed = (*Hub)(nil)
