package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"chemvis/internal/infrastructure"
	"chemvis/pkg/contracts/events"
)

// ErrHubStopped is returned when publishing to a hub that is no longer running
var ErrHubStopped = errors.New("websocket hub stopped")

// broadcastBuffer bounds the number of events queued ahead of the hub loop
const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts dataset events to them.
// All client bookkeeping happens on the goroutine running Run.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// guards clientCount for readers outside the hub loop
	mu          sync.RWMutex
	clientCount int

	logger  *slog.Logger
	metrics *infrastructure.DatasetMetrics

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, metrics *infrastructure.DatasetMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics = infrastructure.NoopDatasetMetrics()
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	h.logger.InfoContext(ctx, "websocket hub started")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(context.Background(), client)
			}
			h.logger.Info("websocket hub stopped")
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount(ctx)

			cctx := client.context()
			h.logger.InfoContext(cctx, "client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if msg, err := json.Marshal(events.BaseMessage{
				ID:        client.id,
				Type:      events.MessageTypeConnect,
				Timestamp: time.Now().UTC(),
				TraceID:   client.traceID,
			}); err == nil {
				select {
				case client.send <- msg:
				default:
					h.logger.WarnContext(cctx, "failed to send connect message, client buffer full",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.drop(ctx, client)
			h.logger.InfoContext(client.context(), "client unregistered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case message := <-h.broadcast:
			failed := 0
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					failed++
					h.drop(ctx, client)
					h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
			h.logger.DebugContext(ctx, "broadcast dataset event",
				slog.Int("client_count", len(h.clients)),
				slog.Int("dropped", failed),
				slog.Int("message_size", len(message)))
		}
	}
}

// drop removes client and closes its send channel; the write pump then closes the socket
func (h *Hub) drop(ctx context.Context, client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount(ctx)
}

func (h *Hub) setCount(ctx context.Context) {
	h.mu.Lock()
	delta := len(h.clients) - h.clientCount
	h.clientCount = len(h.clients)
	h.mu.Unlock()
	h.metrics.WebSocketClients.Add(ctx, int64(delta))
}

// Publish queues a dataset event for every connected client
func (h *Hub) Publish(ctx context.Context, event events.DatasetEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	// The buffered send below would still succeed after Run returned.
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- data:
		h.metrics.WebSocketMessages.Add(ctx, 1,
			metric.WithAttributes(attribute.String("type", string(event.Type))))
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register adds a client to the hub. It reports false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}
