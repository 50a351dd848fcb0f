// Package hub fans out realtime events to websocket subscribers. Clients
// subscribe to a single conversation room; global events reach every client
// regardless of room.
package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types fanned out to subscribers.
const (
	EventNewMessage            = "new_message"
	EventDocumentUploaded      = "document_uploaded"
	EventDocumentDeleted       = "document_deleted"
	EventFCSTriggered          = "fcs_triggered"
	EventFCSCompleted          = "fcs_completed"
	EventQualificationStarted  = "lender_qualification_triggered"
	EventQualificationFinished = "lender_qualification_completed"
)

// Event is one realtime notification.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Payload        any    `json:"payload,omitempty"`
}

// Notifier is the fan-out surface services depend on.
type Notifier interface {
	NotifyRoom(conversationID string, event Event)
	NotifyAll(event Event)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

type client struct {
	conn *websocket.Conn
	room string
	send chan Event
}

// Hub tracks connected clients and their room membership.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

// New creates a Hub. checkOrigin decides which websocket origins to accept;
// nil accepts all.
func New(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeWS upgrades the request and registers the client in the room named by
// the conversation_id query parameter. Empty room means global events only.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("hub: upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		room: r.URL.Query().Get("conversation_id"),
		send: make(chan Event, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// NotifyRoom delivers an event to clients subscribed to the conversation.
func (h *Hub) NotifyRoom(conversationID string, event Event) {
	if conversationID == "" {
		return
	}
	event.ConversationID = conversationID

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.room != conversationID {
			continue
		}
		h.offer(c, event)
	}
}

// NotifyAll delivers an event to every connected client.
func (h *Hub) NotifyAll(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.offer(c, event)
	}
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// offer enqueues without blocking; a client that cannot keep up loses the
// event rather than stalling the broadcaster.
func (h *Hub) offer(c *client, event Event) {
	select {
	case c.send <- event:
	default:
		zap.L().Warn("hub: dropping event for slow client",
			zap.String("event", event.Type),
			zap.String("room", c.room))
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close() //nolint:errcheck
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(c)
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; the socket is one-way. It exists to
// process pongs and detect closure.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
