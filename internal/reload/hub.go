// Package reload pushes rebuild notifications to open browser tabs over a
// WebSocket. Pages that cannot connect fall back to conditional-GET polling.
package reload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/stasis/internal/logging"
)

// Time allowed to write a message to the peer.
const writeWait = 5 * time.Second

// Message is sent to every connected page after a rebuild.
type Message struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected pages and fans out reload messages.
type Hub struct {
	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex
	closed       bool

	logger logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewHub creates a hub. Call Shutdown to disconnect every page.
func NewHub(logger logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		logger:  logger.WithComponent("reload"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ServeHTTP upgrades the request and blocks until the page goes away or the
// hub shuts down. Cross-origin upgrades are refused by the websocket library.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(conn)

	// Pages never send anything; CloseRead tells us when they leave.
	ctx := conn.CloseRead(h.ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "Dropping reload client after failed write", "error", err.Error())
				return
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.clientsMutex.Lock()
	if h.closed {
		h.clientsMutex.Unlock()
		return false
	}
	h.clients[c.conn] = c
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Debug(h.ctx, "Reload client connected", "clients", total)
	return true
}

func (h *Hub) isClosed() bool {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return h.closed
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	_, exists := h.clients[conn]
	delete(h.clients, conn)
	total := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(h.ctx, "Reload client disconnected", "clients", total)
	}
}

// Broadcast queues msg for every connected page. Pages whose queue is full
// are skipped; they will catch up through polling.
func (h *Hub) Broadcast(msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	return nil
}

// ClientCount returns the number of connected pages.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every page and refuses new ones. Pages are sent a
// going-away close frame before their handlers are cancelled.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.clientsMutex.Lock()
		h.closed = true
		conns := make([]*websocket.Conn, 0, len(h.clients))
		for conn := range h.clients {
			conns = append(conns, conn)
		}
		h.clients = make(map[*websocket.Conn]*client)
		h.clientsMutex.Unlock()

		var wg sync.WaitGroup
		for _, conn := range conns {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			}()
		}
		wg.Wait()
		h.cancel()
	})
}
