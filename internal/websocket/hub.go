package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"gemini-chat/internal/models"
)

const updatesChannelPrefix = "chat_updates:"

const (
	// Time allowed to write one snapshot to a browser.
	writeWait = 10 * time.Second

	// Snapshots queued per connection before it is dropped as too slow.
	sendBuffer = 16

	// Snapshots queued for the Redis mirror before new ones are skipped.
	mirrorBuffer  = 64
	mirrorTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes chat snapshots to every connected browser. Publish never blocks:
// each connection has its own queue and writer, and a connection whose queue
// fills up is dropped.
//
// With a Redis client every snapshot is also mirrored to a channel owned by
// this process, so other tools can follow the conversation without sharing
// it with another server.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	snapshot func() models.ChatSnapshot

	redisClient *redis.Client
	channel     string
	mirror      chan []byte

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(redisClient *redis.Client, snapshot func() models.ChatSnapshot) *Hub {
	return &Hub{
		clients:     make(map[*client]struct{}),
		snapshot:    snapshot,
		redisClient: redisClient,
		channel:     updatesChannelPrefix + uuid.NewString(),
	}
}

// Channel is the Redis channel this hub mirrors snapshots to.
func (h *Hub) Channel() string {
	return h.channel
}

// Start begins mirroring snapshots to Redis. It is a no-op without Redis.
func (h *Hub) Start() {
	if h.redisClient == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mirror = make(chan []byte, mirrorBuffer)
	h.done = make(chan struct{})
	go h.runMirror(ctx)

	log.Printf("Mirroring chat updates to Redis channel %s", h.channel)
}

func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writePump(c)

	// Registered first, so anything published after this snapshot still arrives.
	// The page discards snapshots older than the one it holds.
	if data, err := encodeSnapshot(h.snapshot()); err == nil {
		h.broadcastTo([]*client{c}, data)
	}

	// Keep connection alive and handle disconnect
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Publish is registered as a chat observer.
func (h *Hub) Publish(snap models.ChatSnapshot) {
	data, err := encodeSnapshot(snap)
	if err != nil {
		log.Printf("Failed to encode chat snapshot: %v", err)
		return
	}

	h.broadcast(data)

	if h.mirror != nil {
		select {
		case h.mirror <- data:
		default:
			log.Printf("Redis mirror queue full, skipping snapshot %d", snap.Version)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	log.Printf("WebSocket connected (total: %d)", len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes the queue and the connection. Closing the connection
// unblocks a writer stuck on a client that stopped reading.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()

	log.Printf("WebSocket disconnected (total: %d)", len(h.clients))
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: %v", err)
			h.remove(c)
			return
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.broadcastTo(targets, data)
}

func (h *Hub) broadcastTo(targets []*client, data []byte) {
	var slow []*client

	h.mu.RLock()
	for _, c := range targets {
		if _, ok := h.clients[c]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range slow {
		log.Printf("WebSocket client too slow, dropping connection")
		h.removeLocked(c)
	}
}

func (h *Hub) runMirror(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-h.mirror:
			pubCtx, cancel := context.WithTimeout(ctx, mirrorTimeout)
			if err := h.redisClient.Publish(pubCtx, h.channel, string(data)).Err(); err != nil {
				log.Printf("Redis publish failed: %v", err)
			}
			cancel()
		}
	}
}

func encodeSnapshot(snap models.ChatSnapshot) ([]byte, error) {
	return json.Marshal(models.WSMessage{Type: "snapshot", Payload: snap})
}
