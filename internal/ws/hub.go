package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/metrics"
	"github.com/contentpilot/contentpilot-backend/internal/store"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	idleTimeout    = 2 * pongWait
)

// ActivitySource is the live side of the activity feed.
type ActivitySource interface {
	Subscribe(ctx context.Context) <-chan store.Activity
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	source     ActivitySource
	upgrader   websocket.Upgrader
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	filter Filter

	mu         sync.Mutex
	lastActive time.Time
}

// Message is the envelope written to stream clients.
type Message struct {
	Type      string         `json:"type"`
	Topic     string         `json:"topic"`
	Data      store.Activity `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// SubscriptionRequest narrows what a client receives.
type SubscriptionRequest struct {
	Type   string   `json:"type"` // "subscribe" or "unsubscribe"
	Kinds  []string `json:"kinds"`
	UserID string   `json:"userId,omitempty"`
}

// Filter selects activity entries by kind and user. Empty fields match
// everything.
type Filter struct {
	Kinds  map[string]bool
	UserID string
}

func (f Filter) Match(a store.Activity) bool {
	if len(f.Kinds) > 0 && !f.Kinds[a.Kind] {
		return false
	}
	if f.UserID != "" && a.UserID != "" && a.UserID != f.UserID {
		return false
	}
	return true
}

// NewHub builds a hub that relays activity to WebSocket clients. Origins
// lists the allowed browser origins; "*" allows any.
func NewHub(source ActivitySource, origins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		source:     source,
		logger:     logger,
		metrics:    m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// same-origin requests carry no Origin header
		if origin == "" {
			return true
		}
		return originAllowed(origins, origin)
	}
}

func originAllowed(origins []string, origin string) bool {
	for _, allowed := range origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) Run(ctx context.Context) {
	feed := h.source.Subscribe(ctx)
	defer close(h.done)

	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Infow("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.IncrementConnections(ctx)
			}
			h.logger.Debugw("Client registered", "userId", client.filter.UserID)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debugw("Client unregistered")

		case a, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			h.broadcast(a)
		}
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(a store.Activity) {
	msg, err := json.Marshal(Message{
		Type:      "activity",
		Topic:     a.Kind,
		Data:      a,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.matches(a) {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// slow consumer
			h.dropLocked(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		h.dropLocked(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

// dropLocked must be called with h.mu held.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
	if h.metrics != nil {
		h.metrics.DecrementConnections(context.Background())
	}
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients(time.Now().Add(-idleTimeout))
		}
	}
}

func (h *Hub) cleanupInactiveClients(cutoff time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.idleSince(cutoff) {
			h.dropLocked(client)
			h.logger.Debugw("Cleaned up inactive client")
		}
	}
}

// HandleWebSocket upgrades the request. ?kinds= and ?userId= set the
// initial filter; clients may change it with subscription messages.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 256),
		filter:     FilterFromQuery(r),
		lastActive: time.Now(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// FilterFromQuery reads ?kinds=a,b and ?userId=.
func FilterFromQuery(r *http.Request) Filter {
	f := Filter{UserID: r.URL.Query().Get("userId")}
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		f.Kinds = make(map[string]bool)
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				f.Kinds[k] = true
			}
		}
	}
	return f
}

func (c *Client) matches(a store.Activity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Match(a)
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Client) idleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive.Before(cutoff)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}

		c.touch()
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var sub SubscriptionRequest
	if err := json.Unmarshal(message, &sub); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch sub.Type {
	case "subscribe":
		if c.filter.Kinds == nil && len(sub.Kinds) > 0 {
			c.filter.Kinds = make(map[string]bool)
		}
		for _, k := range sub.Kinds {
			c.filter.Kinds[k] = true
		}
		if sub.UserID != "" {
			c.filter.UserID = sub.UserID
		}
		c.hub.logger.Debugw("Client subscribed", "kinds", sub.Kinds, "userId", sub.UserID)

	case "unsubscribe":
		for _, k := range sub.Kinds {
			delete(c.filter.Kinds, k)
		}
		c.hub.logger.Debugw("Client unsubscribed", "kinds", sub.Kinds)
	}
}
