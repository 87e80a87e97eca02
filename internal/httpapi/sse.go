package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groceryDelivery/internal/auth"
	"groceryDelivery/internal/events"
	"groceryDelivery/internal/metrics"
	"groceryDelivery/internal/service"
	"groceryDelivery/internal/tracking"
)

const sseKeepalive = 30 * time.Second

// SSEEvent is the envelope sent to SSE clients.
type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sseClient struct {
	id        string
	principal *auth.Principal
	events    chan SSEEvent
}

// EventHub fans bus events out to connected SSE clients. Each client only sees
// events it is allowed to see; slow clients drop events rather than block the bus.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[*sseClient]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once

	bus     *events.Bus
	subID   events.SubscriptionID
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewEventHub(logger *zap.Logger, m *metrics.Metrics) *EventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHub{
		clients:   make(map[*sseClient]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
		metrics:   m,
		logger:    logger,
	}
}

// Attach subscribes the hub to every event on bus.
func (h *EventHub) Attach(bus *events.Bus) {
	h.bus = bus
	h.subID = bus.SubscribeAll(func(e events.Event) {
		h.Broadcast(SSEEvent{Type: e.Name, Data: e.Payload})
	})
}

func (h *EventHub) Start() {
	go h.run()
}

// Stop detaches from the bus and ends all client streams.
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() {
		if h.bus != nil {
			h.bus.Unsubscribe("", h.subID)
		}
		close(h.stopChan)
	})
}

// Broadcast queues evt for all clients. It never blocks.
func (h *EventHub) Broadcast(evt SSEEvent) {
	select {
	case h.broadcast <- evt:
	default:
		h.logger.Warn("sse broadcast buffer full, dropping event", zap.String("event", evt.Type))
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) register(c *sseClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SSEClients.Inc()
	}
}

func (h *EventHub) unregister(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	close(c.events)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SSEClients.Dec()
	}
}

func (h *EventHub) run() {
	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !visible(c.principal, evt) {
					continue
				}
				select {
				case c.events <- evt:
				default:
					// Client buffer full, drop event
				}
			}
			h.mu.RUnlock()
		}
	}
}

// visible decides whether p may receive evt. Admins see everything; customers see
// their own orders and the catalog; agents see their own work and the catalog.
func visible(p *auth.Principal, evt SSEEvent) bool {
	if p.Kind == auth.KindAdmin {
		return true
	}
	if evt.Type == events.Products {
		return true
	}
	switch d := evt.Data.(type) {
	case service.StatusChange:
		return owns(p, d.CustomerID, d.AgentID)
	case service.OrderChange:
		if d.Order == nil {
			return false
		}
		return owns(p, d.Order.CustomerID, d.Order.AgentID)
	case tracking.Update:
		agent := d.AgentID
		return owns(p, d.CustomerID, &agent)
	case service.AgentChange:
		return p.Kind == auth.KindAgent && d.AgentID == p.ID
	}
	return false
}

func owns(p *auth.Principal, customerID int64, agentID *int64) bool {
	switch p.Kind {
	case auth.KindCustomer:
		return customerID == p.ID
	case auth.KindAgent:
		return agentID != nil && *agentID == p.ID
	}
	return false
}

// HandleSSE streams events to an authenticated caller.
func (h *EventHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &sseClient{id: uuid.NewString(), principal: p, events: make(chan SSEEvent, 64)}
	h.register(client)
	defer h.unregister(client)
	h.logger.Debug("sse client connected", zap.String("client", client.id), zap.String("kind", p.Kind), zap.Int64("id", p.ID))

	fmt.Fprintf(w, "event: connected\ndata: {\"client\":%q}\n\n", client.id)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt, ok := <-client.events:
			if !ok {
				return
			}
			data, err := json.Marshal(evt.Data)
			if err != nil {
				h.logger.Warn("sse marshal", zap.String("event", evt.Type), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
