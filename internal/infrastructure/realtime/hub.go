// Package realtime pushes chat events to connected WebSocket clients.
//
// Events flow Dispatcher -> Hub -> Client. The dispatcher shards events by
// conversation so that each conversation is delivered in order, the hub
// selects the connections allowed to see an event and each client owns a
// buffered send queue drained by its write pump.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/api/metrics"
	"github.com/pairchat/pairchat/internal/core/domain"
)

// Frame is the JSON envelope written to clients.
type Frame struct {
	Event domain.EventType `json:"event"`
	Data  any              `json:"data"`
}

// EncodeFrame renders event as the frame clients receive.
func EncodeFrame(event domain.Event) ([]byte, error) {
	return json.Marshal(Frame{Event: event.Type, Data: event.Payload()})
}

// Hub tracks open connections and delivers events to the participants of
// each conversation.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.RealtimeConnections.Inc()
	h.log.Info().Str("username", c.username).Str("peer", c.peer).Msg("realtime client connected")
}

// Unregister removes c and closes its send queue. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		metrics.RealtimeConnections.Dec()
		h.log.Info().Str("username", c.username).Msg("realtime client disconnected")
	}
}

// Deliver implements Deliverer. Clients whose send queue is full are
// disconnected rather than allowed to hold up the others.
func (h *Hub) Deliver(event domain.Event) {
	frame, err := EncodeFrame(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event.Type)).Msg("encode frame")
		return
	}

	a, b := event.Participants()
	key := domain.ConversationKey(a, b)

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(a, b, key) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		metrics.RealtimeDroppedTotal.WithLabelValues("slow_client").Inc()
		h.log.Debug().Str("username", c.username).Msg("dropping slow realtime client")
		h.Unregister(c)
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
}
