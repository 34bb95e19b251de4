package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/gesture"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// TransitionMessage is the JSON form of a transition sent to websocket
// clients and reported by /api/status.
type TransitionMessage struct {
	Seq           uint64  `json:"seq"`
	Label         string  `json:"label"`
	Payload       string  `json:"payload"`
	Name          string  `json:"name"`
	Previous      string  `json:"previous"`
	At            int64   `json:"at"`
	NoteFrequency float64 `json:"note_frequency,omitempty"`
}

// NewTransitionMessage converts tr.
func NewTransitionMessage(tr *gesture.Transition) TransitionMessage {
	msg := TransitionMessage{
		Seq:      tr.Seq,
		Label:    tr.Label.String(),
		Payload:  string(tr.Payload),
		Name:     tr.Payload.Name(),
		Previous: tr.Previous.String(),
		At:       tr.At.UnixMilli(),
	}
	if f, ok := tr.Payload.NoteFrequency(); ok {
		msg.NoteFrequency = f
	}
	return msg
}

// sendBufferSize is how many messages may wait for a slow client before it
// is dropped.
const sendBufferSize = 16

// client is one websocket connection. Only its writer goroutine writes to
// conn.
type client struct {
	conn *websocket.Conn
	addr string
	send chan []byte
}

// Hub broadcasts transitions to websocket clients. It implements the app's
// sink interface. Send only queues messages, so a stalled client never
// blocks the frame loop.
type Hub struct {
	log     logs.Log
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub with no clients.
func NewHub(log logs.Log) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		conn: conn,
		addr: conn.RemoteAddr().String(),
		send: make(chan []byte, sendBufferSize),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writer(c)
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	<-written
}

// writer sends queued messages to c until its queue is closed, then says
// goodbye and closes the connection.
func (h *Hub) writer(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Infof("Dropping websocket client %s: %v", c.addr, err)
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
}

// Send queues tr for every connected client. Clients whose queue is full
// are dropped.
func (h *Hub) Send(_ context.Context, tr *gesture.Transition) error {
	msg, err := json.Marshal(NewTransitionMessage(tr))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Infof("Dropping websocket client %s: %d messages behind", c.addr, len(c.send))
			h.drop(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop unregisters c and closes its queue. h.mu must be held.
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
