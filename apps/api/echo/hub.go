package echoapi

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/masjidku/backend/core/notify"
)

// Hub fans live payloads out to connected portal sessions. A member may hold
// several connections (tabs); a notification with an empty PrincipalID is
// broadcast to everyone.
type Hub struct {
	register   chan *client
	unregister chan *client
	deliveries chan notify.Notification

	mu      sync.Mutex
	clients map[string]map[*client]struct{} // memberID -> connections
}

type client struct {
	memberID string
	conn     *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		deliveries: make(chan notify.Notification, 64),
		clients:    make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[c.memberID]
			if !ok {
				conns = make(map[*client]struct{})
				h.clients[c.memberID] = conns
			}
			conns[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[c.memberID]; ok {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					c.close()
					if len(conns) == 0 {
						delete(h.clients, c.memberID)
					}
				}
			}
			h.mu.Unlock()
		case n := <-h.deliveries:
			h.deliver(n)
		}
	}
}

// Push hands a stored notification to the hub; it is the Notifier's push
// callback.
func (h *Hub) Push(n notify.Notification) {
	h.deliveries <- n
}

func (h *Hub) deliver(n notify.Notification) {
	payload, err := marshalWSMessage("notification", n)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if n.Broadcast() {
		for _, conns := range h.clients {
			for c := range conns {
				c.push(payload)
			}
		}
		return
	}
	for c := range h.clients[n.PrincipalID] {
		c.push(payload)
	}
}

// push never blocks the hub; a connection that cannot keep up skips the
// message and catches up from the REST endpoints on reconnect. A push after
// close is a no-op, so a late state commit cannot hit a closed channel.
func (c *client) push(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// close stops the write pump. Idempotent.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func marshalWSMessage(kind string, data interface{}) ([]byte, error) {
	return json.Marshal(wsMessage{Type: kind, Data: data})
}
