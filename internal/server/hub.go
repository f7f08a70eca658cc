package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Message is pushed to every preview page after a rebuild.
type Message struct {
	Type  string `json:"type"` // "reload" or "error"
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans messages out to connected preview pages. A client that cannot
// keep up is dropped.
type hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub(logger *log.Logger) *hub {
	return &hub{logger: logger, clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode message", "err", err)
		return
	}

	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	// Close waits for the peer's handshake, so it runs without the lock.
	for _, c := range slow {
		c.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

// serve pumps messages to c until the peer goes away or ctx ends.
func (h *hub) serve(ctx context.Context, c *client) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")
	defer h.remove(c)

	// Preview pages never send; CloseRead handles control frames and
	// cancels ctx when the peer closes.
	ctx = c.conn.CloseRead(ctx)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
