// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package progress

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/pipeline"
)

// WebSocket message types.
const (
	MessageTypeProgress = "progress"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans pipeline progress events out to WebSocket clients. It
// implements pipeline.ProgressSink; Publish never blocks, dropping
// events when the broadcast queue is full. Each client subscribes to a
// single run or, with an empty filter, to every run.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan pipeline.ProgressEvent
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Drive it with Serve.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan pipeline.ProgressEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish implements pipeline.ProgressSink.
func (h *Hub) Publish(event pipeline.ProgressEvent) {
	select {
	case h.broadcast <- event:
	default:
		logging.Warn().Str("run_id", event.RunID).Msg("Progress broadcast queue full, dropping event")
	}
}

// Serve routes registrations, deregistrations and broadcasts until the
// context is canceled, then closes every client. Implements
// suture.Service.
//
// Selection is priority ordered (shutdown, then client lifecycle, then
// broadcasts) so client state is settled before an event fans out and
// a pending shutdown is never starved by a busy feed.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.broadcastToClients(event)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().
		Uint64("client_id", client.id).
		Str("run_filter", client.runFilter).
		Int("total_clients", total).
		Msg("Progress client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Dec()
		logging.Info().
			Uint64("client_id", client.id).
			Int("total_clients", total).
			Msg("Progress client disconnected")
	}
}

// broadcastToClients delivers one event to every matching client in
// client-id order. Clients whose send buffer is full are dropped; a
// consumer that cannot keep up with progress events is not worth
// blocking the feed for.
func (h *Hub) broadcastToClients(event pipeline.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.wants(event) {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	msg := Message{Type: MessageTypeProgress, Data: event}

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- msg:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
		metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("Dropping slow progress client")
	}
}

// shutdown closes all clients and logs the reason without an error
// field, since cancellation is the expected stop path.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "progress-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("Progress hub stopped")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
