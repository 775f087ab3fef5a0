package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camden-git/facesys/logger"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
)

// Envelope wraps every payload pushed to websocket clients.
type Envelope struct {
	Timestamp int64 `json:"timestamp"`
	Data      any   `json:"data"`
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out processing events to connected websocket clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run delivers messages until ctx is done, then disconnects every client.
// It must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow reader
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues v for every client. It never blocks; events are dropped
// when the hub is backed up.
func (h *Hub) Broadcast(v any) {
	encoded, err := json.Marshal(Envelope{Timestamp: time.Now().Unix(), Data: v})
	if err != nil {
		h.log.Error("realtime: failed to marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		h.log.Warn("realtime: dropping event, broadcast channel full")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ServeWS upgrades the connection and registers a client. A hijacked
// request's context is not cancelled on shutdown, so every hand-off to Run
// also gives up when the hub is done.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("realtime: websocket upgrade error", "error", err)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go func() {
		for msg := range client.send {
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// clients only listen; reads just surface the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	case <-r.Context().Done():
	}
}
