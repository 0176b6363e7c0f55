package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/router-for-me/StationPortal/internal/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	clientBuffer   = 16
)

// Hub tracks notification websocket clients per user on this node.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]map[string]chan Message
	metrics *metrics.Collectors
}

// NewHub creates an empty hub. m may be nil.
func NewHub(m *metrics.Collectors) *Hub {
	return &Hub{
		clients: make(map[uint64]map[string]chan Message),
		metrics: m,
	}
}

// Register adds a client for userID and returns its id and message channel.
func (h *Hub) Register(userID uint64) (string, <-chan Message) {
	clientID := uuid.NewString()
	ch := make(chan Message, clientBuffer)

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]chan Message)
	}
	h.clients[userID][clientID] = ch
	h.mu.Unlock()

	h.metrics.WSConnected(1)
	return clientID, ch
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(userID uint64, clientID string) {
	h.mu.Lock()
	conns := h.clients[userID]
	ch, ok := conns[clientID]
	if ok {
		delete(conns, clientID)
		close(ch)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()

	if ok {
		h.metrics.WSConnected(-1)
	}
}

// Deliver queues msg for every client of msg.UserID and returns how many received it.
// Clients with a full buffer are skipped.
func (h *Hub) Deliver(msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for clientID, ch := range h.clients[msg.UserID] {
		select {
		case ch <- msg:
			delivered++
		default:
			log.WithFields(log.Fields{"user_id": msg.UserID, "client_id": clientID}).Warn("realtime: client buffer full, message dropped")
		}
	}
	return delivered
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// Serve pumps hub messages for userID to conn until the peer leaves, ctx ends,
// or a force logout is written. The connection is closed on return.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID uint64) {
	clientID, messages := h.Register(userID)
	defer h.Unregister(userID, clientID)
	defer func() { _ = conn.Close() }()

	entry := log.WithFields(log.Fields{"user_id": userID, "client_id": clientID})
	entry.Debug("realtime: client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, errRead := conn.ReadMessage(); errRead != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-done:
			entry.Debug("realtime: client disconnected")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if errWrite := conn.WriteJSON(msg); errWrite != nil {
				entry.WithError(errWrite).Debug("realtime: write failed")
				return
			}
			if msg.Type == TypeForceLogout {
				writeClose(conn, websocket.CloseNormalClosure, "session terminated")
				entry.Info("realtime: force logout delivered")
				return
			}
		case <-ticker.C:
			if errPing := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); errPing != nil {
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
