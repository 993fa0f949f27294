package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/scopeshare/pkg/scopeshare"
)

// StreamMessageType represents the type of stream message.
type StreamMessageType string

const (
	StreamTypeHello  StreamMessageType = "hello"
	StreamTypeChange StreamMessageType = "change"
)

// StreamMessage is sent to inspector clients via WebSocket.
type StreamMessage struct {
	Type   StreamMessageType       `json:"type"`
	Client string                  `json:"client,omitempty"`
	Event  *scopeshare.ChangeEvent `json:"event,omitempty"`
}

// Broadcaster manages WebSocket connections for the change stream.
type Broadcaster struct {
	clients  map[*websocket.Conn]string
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger

	// writeMu serializes writes; store taps may broadcast from
	// concurrent writer goroutines.
	writeMu sync.Mutex
}

// NewBroadcaster creates a broadcaster. When allowAnyOrigin is set, origin
// checking is disabled (the inspector is a localhost dev tool).
func NewBroadcaster(allowAnyOrigin bool, logger *slog.Logger) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[*websocket.Conn]string),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if allowAnyOrigin {
		b.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return b
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := b.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.clients[conn] = id
	b.mu.Unlock()

	if err := b.write(conn, StreamMessage{Type: StreamTypeHello, Client: id}); err != nil {
		b.drop(conn)
		return
	}
	b.logger.Debug("inspector client connected", "client", id)

	// Keep the connection alive until the client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	b.drop(conn)
	b.logger.Debug("inspector client disconnected", "client", id)
}

// Broadcast sends a change event to all connected clients.
func (b *Broadcaster) Broadcast(ev scopeshare.ChangeEvent) {
	msg := StreamMessage{Type: StreamTypeChange, Event: &ev}

	b.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		clients = append(clients, conn)
	}
	b.mu.RUnlock()

	for _, conn := range clients {
		if err := b.write(conn, msg); err != nil {
			b.drop(conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close closes all client connections.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
}

func (b *Broadcaster) write(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.mu.Lock()
	delete(b.clients, conn)
	b.mu.Unlock()
	conn.Close()
}
