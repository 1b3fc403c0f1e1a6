// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to dashboards.
const (
	MessageTypeRawKill = "raw-kill"
	MessageTypeStats   = "gatekeeper-stats"
	MessageTypePerf    = "perf-stats"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
)

const broadcastBuffer = 256

// Message is the envelope written to every dashboard socket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TotalFunc reports the lifetime kill count for the connect greeting.
type TotalFunc func() int64

// Hub fans processed kills out to connected dashboards. A slow client whose
// send buffer is full is dropped rather than stalling the broadcast.
//
// Example usage:
//
//	hub := websocket.NewHub(tracker.Total)
//	tree.AddAPIService(hub)
//	router.Handle("/ws", websocket.Handler(hub, origins))
//	hub.PushKill(summary)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	total      TotalFunc

	// mu guards clients and each client's closed flag.
	mu sync.RWMutex

	done chan struct{}
	stop sync.Once
}

// NewHub creates a hub. total may be nil, in which case new clients are
// greeted with zero.
func NewHub(total TotalFunc) *Hub {
	if total == nil {
		total = func() int64 { return 0 }
	}
	return &Hub{
		broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		total:      total,
		done:       make(chan struct{}),
	}
}

// Serve runs the hub until ctx is done. It implements suture.Service.
//
// When the context is canceled:
//  1. All connected clients are closed
//  2. Pending Register and Unregister sends are released
//  3. The method returns ctx.Err()
//
// Selection is priority based:
//   - Priority 1: context cancellation
//   - Priority 2: client lifecycle events (Register/Unregister)
//   - Priority 3: broadcast messages
//
// A client registered before a message was queued therefore always
// receives it.
func (h *Hub) Serve(ctx context.Context) error {
	defer h.stop.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
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
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) String() string { return "websocket-hub" }

// register hands client to the hub. It reports false once the hub has
// stopped, so an upgrade racing shutdown does not block forever.
func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregister removes client, or returns immediately after shutdown when
// the hub has already closed every client.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// closeClient marks client closed and closes its send channel. Callers
// hold h.mu for writing.
func (h *Hub) closeClient(client *Client) {
	client.closed = true
	close(client.send)
	delete(h.clients, client)
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))

	greeting := Message{Type: MessageTypeStats, Data: models.ScanStats{TotalScanned: h.total()}}
	select {
	case client.send <- greeting:
		metrics.WSMessagesSent.WithLabelValues(MessageTypeStats).Inc()
	default:
	}
	logging.Info().Int("total_clients", n).Msg("Dashboard connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		h.closeClient(client)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("Dashboard disconnected")
}

// logGracefulShutdown closes every client and logs the shutdown with:
//   - component: "websocket-hub"
//   - reason: context_canceled or context_deadline
//   - clients_closed: clients connected at shutdown
//
// Cancellation is logged at info level, not as an error.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	n := h.ClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", n).
		Msg("Dashboard hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in connection order. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients offers message to every client in connection order.
// Clients whose buffer is full are closed and removed in the same pass.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.WithLabelValues(message.Type).Inc()
		default:
			dropped = append(dropped, client)
		}
	}

	for _, client := range dropped {
		h.closeClient(client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
	}
	if len(dropped) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
		logging.Warn().Int("dropped", len(dropped)).Msg("Dropped slow dashboard clients")
	}
}

// closeAllClients closes every client in connection order during shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.sortedClients() {
		h.closeClient(client)
	}
	metrics.WSConnections.Set(0)
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_full").Inc()
		logging.Warn().Str("message_type", messageType).Msg("Broadcast channel full, dropping message")
	}
}

// PushKill broadcasts a processed kill.
func (h *Hub) PushKill(summary *models.KillSummary) {
	h.Broadcast(MessageTypeRawKill, summary)
}

// PushStats broadcasts the running scan total.
func (h *Hub) PushStats(stats models.ScanStats) {
	h.Broadcast(MessageTypeStats, stats)
}

// PushPerf broadcasts one processing latency sample.
func (h *Hub) PushPerf(perf models.PerfStats) {
	h.Broadcast(MessageTypePerf, perf)
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
