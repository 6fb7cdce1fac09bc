package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridwatch/gridwatch/pkg/wire"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	outBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboards may be served from any origin; restrict at the reverse
	// proxy if needed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// SnapshotFunc supplies the grid view pushed to clients. The node wires
// this to the same builder that backs the grid endpoint, so both surfaces
// report identical state.
type SnapshotFunc func() wire.GridResponse

// Hub streams the local grid view to all connected WebSocket clients.
type Hub struct {
	snapshot SnapshotFunc
	interval time.Duration

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

type session struct {
	conn *websocket.Conn
	out  chan []byte
}

// New creates a hub that pushes snapshot() to every client on each interval.
func New(snapshot SnapshotFunc, interval time.Duration) *Hub {
	return &Hub{
		snapshot: snapshot,
		interval: interval,
		sessions: make(map[*session]struct{}),
	}
}

// Run drives the push ticker. It blocks until ctx is cancelled, then closes
// every active connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.push()
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket connection, sends the
// current grid view immediately, then streams updates on every tick.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s := &session{conn: conn, out: make(chan []byte, outBufSize)}
	h.add(s)

	// New clients get the current view right away rather than waiting
	// for the next tick.
	if frame, err := h.frame(); err == nil {
		select {
		case s.out <- frame:
		default:
		}
	}

	go s.writePump()
	s.readPump(h)
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = struct{}{}
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.out)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		delete(h.sessions, s)
		close(s.out)
	}
}

// push sends the current grid view to every session. Sessions whose buffer
// is full are dropped; a stalled reader must not block the grid.
func (h *Hub) push() {
	frame, err := h.frame()
	if err != nil {
		slog.Warn("ws: encode grid view", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.out <- frame:
		default:
			h.drop(s)
		}
	}
}

func (h *Hub) frame() ([]byte, error) {
	return json.Marshal(wire.StreamMessage{Event: "grid", Data: h.snapshot()})
}

// writePump writes queued frames to the connection and keeps it alive with
// periodic pings. It exits when the out channel is closed.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards incoming frames and detects closed connections. Clients
// only listen, so the read side exists for pong handling and disconnect
// detection.
func (s *session) readPump(h *Hub) {
	defer func() {
		h.drop(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
