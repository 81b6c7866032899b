// Package websocket streams readings, alerts and mode changes to local
// dashboard clients.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"deskhealth/internal/logger"
	"deskhealth/internal/metrics"
)

// Event types sent to clients
const (
	EventReading = "reading"
	EventAlert   = "alert"
	EventMode    = "mode"
)

// Event is the JSON frame written to clients
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

// Hub maintains the set of active clients and broadcasts events to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run services the hub until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	log := logger.WithComponent("websocket_hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			log.Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.WebsocketClients.Set(float64(len(h.clients)))
			log.Info().Str("remote_addr", client.remoteAddr()).Msg("client registered")

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				log.Info().Str("remote_addr", client.remoteAddr()).Msg("client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow client, cut it loose
					log.Warn().Str("remote_addr", client.remoteAddr()).Msg("client send buffer full, removing")
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Register adds a client. Returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends an event to all clients. It never blocks; when the
// hub is backed up or stopped the event is dropped.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	message, err := json.Marshal(Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		log := logger.WithComponent("websocket_hub")
		log.Error().Err(err).Str("type", eventType).Msg("failed to marshal event")
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
	}
}
