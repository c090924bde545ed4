package stream

import (
	"context"
	"fmt"
	"sync"
)

// Orderbook is one raw top-of-book message from a venue. Timestamp is
// the venue-reported time in ms since epoch, 0 when the venue did not
// report one. Levels are ordered best-first.
type Orderbook struct {
	Timestamp int64
	Bids      [][2]float64 // [price, quantity]
	Asks      [][2]float64
}

// Trade is one raw trade print from a venue.
type Trade struct {
	ID        string
	Timestamp int64 // ms since epoch, 0 when unreported
	Symbol    string
	Side      string
	Price     float64
	Amount    float64
	Cost      float64
	Type      string
}

// Source is one symbol's live subscription. Receive calls block until a
// message arrives, the context is done, or the subscription fails; any
// returned error is treated as recoverable by the monitor.
type Source interface {
	ReceiveOrderbook(ctx context.Context) (Orderbook, error)
	ReceiveTrades(ctx context.Context) ([]Trade, error)
	Close() error
}

// Provider constructs per-symbol sources for one connectivity backend.
type Provider interface {
	Open(ctx context.Context, exchange, marketType, symbol string) (Source, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, exchange, marketType, symbol string) (Source, error)

func (f ProviderFunc) Open(ctx context.Context, exchange, marketType, symbol string) (Source, error) {
	return f(ctx, exchange, marketType, symbol)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register makes a connectivity adapter available under an exchange
// identifier. Typically called from an adapter package's init.
func Register(exchange string, p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[exchange] = p
}

// Registry is a Provider that dispatches by exchange identifier. An
// unknown identifier is a fatal init error for that monitor only.
type Registry struct{}

func (Registry) Open(ctx context.Context, exchange, marketType, symbol string) (Source, error) {
	registryMu.RLock()
	p, ok := registry[exchange]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown exchange %q: no connectivity adapter registered", exchange)
	}
	return p.Open(ctx, exchange, marketType, symbol)
}
