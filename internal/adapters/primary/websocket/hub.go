package websocket

import (
	"log/slog"
	"sync"

	"github.com/voxline/robocall-qa-backend/internal/core/domain"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
)

// Hub maintains the set of connected QA dashboards and fans ticket events out
// to them. The feed is a single stream: every client sees every event, with
// an optional per-connection agent filter applied at send time.
type Hub struct {
	clients map[*Client]bool

	// broadcast carries events from the services into the hub loop.
	broadcast chan domain.TicketEvent

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan domain.TicketEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for delivery to every connected dashboard. It
// never blocks the caller: when the buffer is full the event is dropped.
func (h *Hub) Broadcast(event domain.TicketEvent) error {
	select {
	case h.broadcast <- event:
		return nil
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_type", event.Type,
			"ticket_number", event.TicketNumber,
		)
		return nil
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client registered",
		"subject", client.Subject,
		"total_connections", total,
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()

	client.CloseSend()

	h.logger.Info("client unregistered", "subject", client.Subject)
}

func (h *Hub) broadcastEvent(event domain.TicketEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting event",
		"event_type", event.Type,
		"ticket_number", event.TicketNumber,
		"client_count", len(clients),
	)

	for _, client := range clients {
		if !client.Wants(event) {
			continue
		}
		select {
		case client.Send <- event:
		default:
			// Client's send buffer is full, drop them. Done inline because
			// this runs on the hub loop itself.
			h.logger.Warn("client send buffer full, unregistering",
				"subject", client.Subject,
			)
			h.unregisterClient(client)
		}
	}
}

// GetClientCount returns the number of connected dashboards.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
