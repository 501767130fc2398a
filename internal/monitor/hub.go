// Package monitor exposes the resolved input event stream to calibration
// observers: a websocket fan-out for live profile authoring, prometheus
// counters, and an event rate meter. It is a read-only observer of the
// ingest path and never blocks it.
package monitor

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
)

// Hub manages websocket observer clients and fans event messages out to them.
type Hub struct {
	logger     golog.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	// Closed when Run returns; lets pending unregister sends give up
	// instead of blocking with no receiver left.
	done chan struct{}
	mu   sync.RWMutex
}

func NewHub(logger golog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Broadcast sends a message to every connected client. A client whose send
// buffer is full is disconnected rather than slow the caller down.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			go h.dropSlow(client)
		}
	}
}

// dropSlow unregisters a client that could not keep up with the broadcast
// rate. Returns without sending once the hub has stopped.
func (h *Hub) dropSlow(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run starts the hub's main loop. Should be run in a goroutine; it returns
// when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("observer connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("observer disconnected", "total", total)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			close(h.done)
			return
		}
	}
}
