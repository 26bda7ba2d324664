package sse

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// ClientBuffer is the number of frames queued per client before new frames
// are dropped for that client.
const ClientBuffer = 256

// Client is one connected subscriber.
type Client struct {
	id     string
	topic  string
	frames chan frame
}

// NewClient creates a client subscribed to the topic glob.
func NewClient(id, topic string) (*Client, error) {
	if topic == "" {
		topic = "*"
	}
	if _, err := path.Match(topic, ""); err != nil {
		return nil, fmt.Errorf("invalid topic pattern %q: %w", topic, err)
	}
	return &Client{id: id, topic: topic, frames: make(chan frame, ClientBuffer)}, nil
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// Topic returns the subscribed topic glob.
func (c *Client) Topic() string { return c.topic }

// Matches reports whether an event topic matches the subscription.
func (c *Client) Matches(topic string) bool {
	ok, _ := path.Match(c.topic, topic)
	return ok
}

// send queues f without blocking. It reports false when the client is full.
func (c *Client) send(f frame) bool {
	select {
	case c.frames <- f:
		return true
	default:
		return false
	}
}

// Hub fans events out to subscribed clients. Run must be running for
// registration and delivery.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan published
	done       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
	log        *logger.Logger
}

type published struct {
	topic string
	frame frame
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan published, ClientBuffer),
		done:       make(chan struct{}),
		now:        time.Now,
		log:        logger.Get("sse"),
	}
}

// Run processes registrations and deliveries until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client subscribed", logger.Fields("client_id", c.id, "topic", c.topic, "clients", total))
		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
				close(c.frames)
			}
			h.mu.Unlock()
			h.log.Debug("client unsubscribed", logger.Fields("client_id", c.id))
		case p := <-h.broadcast:
			h.deliver(p)
		}
	}
}

// Stop ends Run and closes every client stream. Safe to call repeatedly.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register subscribes c. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its stream.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish encodes e and queues it for delivery. Time defaults to now. The
// event is dropped when the hub is stopped or its queue is full.
func (h *Hub) Publish(e Event) error {
	if e.Time.IsZero() {
		e.Time = h.now()
	}
	f, err := encode(e)
	if err != nil {
		return fmt.Errorf("sse: encoding %s event: %w", e.Type, err)
	}
	select {
	case <-h.done:
		return nil
	default:
	}
	select {
	case h.broadcast <- published{topic: e.Topic, frame: f}:
	default:
		h.log.Warn("event queue full, dropping event", logger.Fields("type", e.Type, "topic", e.Topic))
	}
	return nil
}

func (h *Hub) deliver(p published) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.Matches(p.topic) {
			continue
		}
		if !c.send(p.frame) {
			h.log.Warn("client buffer full, dropping event", logger.Fields("client_id", c.id, "topic", p.topic))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.frames)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a subscribed client by id, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}
