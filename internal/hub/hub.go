package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/crypto-data/internal/metrics"
	"github.com/rickgao/crypto-data/internal/model"
)

// emptyWarnInterval rate-limits the "no subscribers" warning.
const emptyWarnInterval = 30 * time.Second

// Conn is one subscriber connection. The hub holds the only reference.
type Conn interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Stats is a point-in-time snapshot of hub counters.
type Stats struct {
	Connections int
	Broadcasts  int64
	Pruned      int64
}

// Hub maintains the live subscriber set and delivers every broadcast
// payload to each of them, best-effort.
type Hub struct {
	logger *slog.Logger

	mu            sync.Mutex
	conns         map[string]Conn
	config        []byte // retained configuration payload, nil until set
	lastEmptyWarn time.Time
	broadcasts    int64
	pruned        int64
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[string]Conn),
	}
}

// SetConfig retains a configuration payload that every subscriber
// receives on join. Late joiners get the latest snapshot.
func (h *Hub) SetConfig(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config payload: %w", err)
	}
	h.mu.Lock()
	h.config = data
	h.mu.Unlock()
	return nil
}

// Connect adds a connection to the live set and replays the retained
// config payload to it. The config send happens outside the lock; if it
// fails the connection is pruned immediately.
func (h *Hub) Connect(c Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	cfg := h.config
	n := len(h.conns)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	h.logger.Info("subscriber connected", "conn_id", c.ID(), "subscribers", n)

	if cfg != nil {
		if err := c.Send(cfg); err != nil {
			h.logger.Warn("config send failed", "conn_id", c.ID(), "error", err)
			h.Disconnect(c)
		}
	}
}

// Disconnect removes a connection from the live set and closes it.
// Idempotent.
func (h *Hub) Disconnect(c Conn) {
	h.mu.Lock()
	_, present := h.conns[c.ID()]
	delete(h.conns, c.ID())
	n := len(h.conns)
	h.mu.Unlock()

	if !present {
		return
	}

	_ = c.Close()
	metrics.Subscribers.Set(float64(n))
	h.logger.Info("subscriber disconnected", "conn_id", c.ID(), "subscribers", n)
}

// Broadcast delivers the event to every currently-connected subscriber,
// pruning any whose send fails. Sends happen on a snapshot of the set,
// outside the lock, so disconnects triggered mid-broadcast never mutate
// the set being iterated.
func (h *Hub) Broadcast(event model.BroadcastEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode broadcast event", "error", err)
		return
	}

	h.mu.Lock()
	if len(h.conns) == 0 {
		if time.Since(h.lastEmptyWarn) >= emptyWarnInterval {
			h.lastEmptyWarn = time.Now()
			h.mu.Unlock()
			h.logger.Warn("broadcast with no subscribers")
		} else {
			h.mu.Unlock()
		}
		return
	}
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.broadcasts++
	h.mu.Unlock()

	metrics.EventsBroadcast.Inc()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.logger.Warn("send failed, pruning subscriber", "conn_id", c.ID(), "error", err)
			h.mu.Lock()
			h.pruned++
			h.mu.Unlock()
			metrics.SubscribersPruned.Inc()
			h.Disconnect(c)
		}
	}
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Connections: len(h.conns),
		Broadcasts:  h.broadcasts,
		Pruned:      h.pruned,
	}
}

// CloseAll disconnects every subscriber. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.Disconnect(c)
	}
}
