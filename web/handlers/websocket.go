package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// AnswerEvent is broadcast to connected clients whenever a question is
// answered, so a frontend can animate the avatar and show provenance
// without polling.
type AnswerEvent struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	PersonalityID string   `json:"personality_id"`
	UserID        string   `json:"user_id"`
	Sources       []string `json:"sources"`
	DurationMS    int64    `json:"duration_ms"`
	Timestamp     string   `json:"timestamp"`
}

// WebSocketHub fans answer events out to connected WebSocket clients.
type WebSocketHub struct {
	clients    map[eventClient]bool
	broadcast  chan interface{}
	register   chan eventClient
	unregister chan eventClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// eventClient abstracts a connected client so the hub is testable
// without live connections.
type eventClient interface {
	sendChannel() chan []byte
	close()
}

// NewWebSocketHub creates a hub. Call Run in a goroutine to start it.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		clients:    make(map[eventClient]bool),
		broadcast:  make(chan interface{}, 256),
		register:   make(chan eventClient),
		unregister: make(chan eventClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes register, unregister, and broadcast requests until Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.sendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("Failed to marshal WebSocket event: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.sendChannel() <- data:
				default:
					// Slow consumer; drop it rather than block the hub.
					close(client.sendChannel())
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.sendChannel())
		client.close()
	}
	h.clients = make(map[eventClient]bool)
	h.mu.Unlock()
}

// BroadcastAnswer queues an answer event for all connected clients.
// Events are best-effort: when the queue is full the event is dropped.
func (h *WebSocketHub) BroadcastAnswer(personalityID, userID string, sources []string, duration time.Duration) {
	if sources == nil {
		sources = []string{}
	}
	event := AnswerEvent{
		ID:            "evt:" + uuid.New().String()[:8],
		Type:          "answer",
		PersonalityID: personalityID,
		UserID:        userID,
		Sources:       sources,
		DurationMS:    duration.Milliseconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case h.broadcast <- event:
	default:
		log.Println("WebSocket broadcast queue full, dropping answer event")
	}
}

// ServeHTTP handles WebSocket upgrade requests on /ws.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// wsClient is one live WebSocket connection.
type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) sendChannel() chan []byte { return c.send }

func (c *wsClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// detach hands the client back to the hub. After Stop the hub loop is
// gone, so the send must not block the pump goroutine forever.
func (c *wsClient) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
	}
}

func (c *wsClient) writePump() {
	defer func() {
		c.detach()
		c.close()
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnects. The event
// stream is one-way; inbound payloads are ignored.
func (c *wsClient) readPump() {
	defer func() {
		c.detach()
		c.close()
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
