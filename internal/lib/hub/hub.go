// Package hub pushes dashboard updates to owners over server-sent events.
//
// Each connected browser tab is a Client subscribed to one owner. Events are
// published to a Redis channel so every instance behind the load balancer
// sees them; each instance's Run loop then fans them out to its own local
// subscribers. Without Redis, Publish delivers locally.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the Redis pub/sub channel all instances share.
const Channel = "autoprintx:owner-events"

// Event types.
const (
	EventOrderCreated    = "order.created"
	EventOrderUpdated    = "order.updated"
	EventSettingsUpdated = "settings.updated"
)

const (
	clientBuffer      = 16
	defaultKeepalive  = 30 * time.Second
	reconnectInterval = 5 * time.Second
)

// Event is one dashboard update for one owner.
type Event struct {
	Type    string    `json:"type"`
	OwnerID uuid.UUID `json:"owner_id"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

// Client is a single SSE connection.
type Client struct {
	ownerID uuid.UUID
	events  chan []byte
}

// Events yields encoded SSE frames until the client is unsubscribed.
func (c *Client) Events() <-chan []byte {
	return c.events
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}

	redis     redis.UniversalClient
	logger    *zerolog.Logger
	keepalive time.Duration
}

// New creates a Hub. redisClient may be nil.
func New(logger *zerolog.Logger, redisClient redis.UniversalClient) *Hub {
	return &Hub{
		clients:   make(map[uuid.UUID]map[*Client]struct{}),
		redis:     redisClient,
		logger:    logger,
		keepalive: defaultKeepalive,
	}
}

func (h *Hub) Subscribe(ownerID uuid.UUID) *Client {
	client := &Client{ownerID: ownerID, events: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	set, ok := h.clients[ownerID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[ownerID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug().Str("owner_id", ownerID.String()).Msg("sse client connected")
	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	if set, ok := h.clients[client.ownerID]; ok {
		if _, ok := set[client]; ok {
			delete(set, client)
			close(client.events)
		}
		if len(set) == 0 {
			delete(h.clients, client.ownerID)
		}
	}
	h.mu.Unlock()

	h.logger.Debug().Str("owner_id", client.ownerID.String()).Msg("sse client disconnected")
}

// ClientCount returns the number of local connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Publish sends evt to every instance. If Redis is unavailable the event is
// still delivered to this instance's subscribers.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if h.redis != nil {
		err := h.redis.Publish(ctx, Channel, payload).Err()
		if err == nil {
			return nil
		}
		h.logger.Warn().Err(err).Str("type", evt.Type).Msg("event publish failed, delivering locally")
	}

	h.deliver(evt.OwnerID, payload)
	return nil
}

func (h *Hub) deliver(ownerID uuid.UUID, payload []byte) {
	frame := []byte(fmt.Sprintf("data: %s\n\n", payload))

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[ownerID] {
		select {
		case client.events <- frame:
		default:
			h.logger.Warn().Str("owner_id", ownerID.String()).Msg("sse client is slow, dropping event")
		}
	}
}

// Run relays events from Redis to local subscribers until ctx is done. It
// resubscribes after a broken connection. Without Redis it returns at once.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}

	for {
		h.relay(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
		}
	}
}

func (h *Hub) relay(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, Channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				h.logger.Warn().Msg("event subscription closed")
				return
			}

			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				h.logger.Error().Err(err).Msg("failed to decode event")
				continue
			}
			h.deliver(evt.OwnerID, []byte(msg.Payload))
		}
	}
}

// ServeSSE streams ownerID's events to w until the request ends.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := h.Subscribe(ownerID)
	defer h.Unsubscribe(client)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
