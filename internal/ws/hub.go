package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go-bookstore-pos/internal/events"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// ErrHubBusy means the broadcast queue is full and the event was dropped
var ErrHubBusy = errors.New("websocket hub busy, event dropped")

// Conn is the part of a websocket connection the hub writes to
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// clientConn is a connection the hub also reads from
type clientConn interface {
	Conn
	ReadMessage() (messageType int, p []byte, err error)
}

type Hub struct {
	clients    map[Conn]bool
	Register   chan Conn
	Unregister chan Conn
	Broadcast  chan []byte
	done       chan struct{}
	mutex      sync.Mutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[Conn]bool),
		Register:   make(chan Conn),
		Unregister: make(chan Conn),
		Broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run serves register/unregister/broadcast until ctx is done. After it
// returns, Serve no longer blocks on the hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("ws client connected", zap.Int("clients", total))

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish queues the event for every connected client without blocking
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case h.Broadcast <- msg:
		return nil
	default:
		return ErrHubBusy
	}
}

// Serve keeps one websocket connection registered until the client leaves
func (h *Hub) Serve(c *websocket.Conn) {
	h.serve(c)
}

func (h *Hub) serve(c clientConn) {
	select {
	case h.Register <- c:
	case <-h.done:
		c.Close()
		return
	}
	defer func() {
		select {
		case h.Unregister <- c:
		case <-h.done:
		}
	}()

	for {
		// keep alive, client messages are ignored
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
