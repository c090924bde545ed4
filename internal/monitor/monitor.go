package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/rickgao/crypto-data/internal/metrics"
	"github.com/rickgao/crypto-data/internal/model"
	"github.com/rickgao/crypto-data/internal/stream"
)

// Appender is the sink surface a monitor needs.
type Appender interface {
	Append(key model.PartitionKey, rec model.Record)
	FlushAll()
}

// Broadcaster fans an event out to live subscribers.
type Broadcaster interface {
	Broadcast(event model.BroadcastEvent)
}

// Config holds per-monitor settings shared across a symbol group.
type Config struct {
	Entity     model.EntityType
	Exchange   string
	MarketType string
	Depth      int // orderbooks only

	// StallCeiling bounds each receive; 0 disables the ceiling (trade
	// feeds rely on the source's own liveness).
	StallCeiling  time.Duration
	RetryInterval time.Duration
}

// Monitor watches one symbol's stream.
type Monitor struct {
	cfg         Config
	symbol      string
	provider    stream.Provider
	sink        Appender
	broadcaster Broadcaster
	logger      *slog.Logger

	// lastTradeID is the de-duplication baseline; empty until the first
	// trade after monitor start.
	lastTradeID string
}

// New creates a monitor for one symbol.
func New(cfg Config, symbol string, provider stream.Provider, sink Appender, broadcaster Broadcaster, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:         cfg,
		symbol:      symbol,
		provider:    provider,
		sink:        sink,
		broadcaster: broadcaster,
		logger: logger.With(
			"entity", cfg.Entity,
			"exchange", cfg.Exchange,
			"market_type", cfg.MarketType,
			"symbol", symbol,
		),
	}
}

// receive outcomes; the state transition is explicit rather than
// inferred from error types.
type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeStall
	outcomeTransient
	outcomeCancelled
)

type outcome struct {
	kind outcomeKind
	err  error
}

// Run streams until ctx is cancelled. A failure to open the initial
// subscription is returned as-is (fatal for this monitor only); every
// later failure is contained and retried.
func (m *Monitor) Run(ctx context.Context) error {
	src, err := m.provider.Open(ctx, m.cfg.Exchange, m.cfg.MarketType, m.symbol)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	m.logger.Info("monitor started")

	defer func() {
		if cerr := src.Close(); cerr != nil {
			m.logger.Debug("close stream source", "error", cerr)
		}
		m.sink.FlushAll()
		m.logger.Info("monitor stopped")
	}()

	bo := backoff.NewConstantBackOff(m.cfg.RetryInterval)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var out outcome
		switch m.cfg.Entity {
		case model.EntityOrderbook:
			out = m.receiveOrderbook(ctx, src)
		default:
			out = m.receiveTrades(ctx, src)
		}

		switch out.kind {
		case outcomeOK:
			// next receive

		case outcomeCancelled:
			return ctx.Err()

		case outcomeStall:
			// A silently stalled subscription is indistinguishable from
			// "no updates"; recycle it proactively.
			metrics.StreamStalls.WithLabelValues(m.cfg.Exchange).Inc()
			m.logger.Warn("stream stalled, resubscribing",
				"ceiling", m.cfg.StallCeiling,
			)
			_ = src.Close()
			next, err := m.reopen(ctx)
			if err != nil {
				return ctx.Err()
			}
			src = next

		case outcomeTransient:
			metrics.StreamErrors.WithLabelValues(m.cfg.Exchange).Inc()
			m.logger.Warn("stream error", "error", truncate(out.err.Error(), 200))
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return err
			}
		}
	}
}

// receiveOrderbook performs one bounded receive and, on success,
// normalizes and dispatches the snapshot.
func (m *Monitor) receiveOrderbook(ctx context.Context, src stream.Source) outcome {
	wait := ctx
	if m.cfg.StallCeiling > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, m.cfg.StallCeiling)
		defer cancel()
	}

	ob, err := src.ReceiveOrderbook(wait)
	if err != nil {
		return m.classify(ctx, wait, err)
	}

	m.handleOrderbook(ob)
	return outcome{kind: outcomeOK}
}

// receiveTrades performs one receive and dispatches each new trade.
func (m *Monitor) receiveTrades(ctx context.Context, src stream.Source) outcome {
	wait := ctx
	if m.cfg.StallCeiling > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, m.cfg.StallCeiling)
		defer cancel()
	}

	trades, err := src.ReceiveTrades(wait)
	if err != nil {
		return m.classify(ctx, wait, err)
	}

	for _, t := range trades {
		m.handleTrade(t)
	}
	return outcome{kind: outcomeOK}
}

// classify maps a receive failure onto the state machine transition.
func (m *Monitor) classify(ctx, wait context.Context, err error) outcome {
	if ctx.Err() != nil {
		return outcome{kind: outcomeCancelled}
	}
	if errors.Is(wait.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return outcome{kind: outcomeStall}
	}
	return outcome{kind: outcomeTransient, err: err}
}

func (m *Monitor) handleOrderbook(ob stream.Orderbook) {
	localTS := time.Now().UnixMilli()
	exchangeTS := ob.Timestamp
	if exchangeTS == 0 {
		exchangeTS = localTS
	}

	snap := model.OrderbookSnapshot{
		LocalTS:    localTS,
		ExchangeTS: exchangeTS,
		Datetime:   model.FormatDatetime(localTS),
		Symbol:     m.symbol,
		Bids:       truncateLevels(ob.Bids, m.cfg.Depth),
		Asks:       truncateLevels(ob.Asks, m.cfg.Depth),
	}

	key := model.PartitionKey{
		Entity:     model.EntityOrderbook,
		MarketType: m.cfg.MarketType,
		Exchange:   m.cfg.Exchange,
		Symbol:     model.NormalizeSymbol(m.symbol),
		Date:       model.DateFromMillis(localTS),
	}

	m.sink.Append(key, snap.Record(m.cfg.Depth))
	metrics.RecordsIngested.WithLabelValues(string(model.EntityOrderbook)).Inc()

	m.broadcaster.Broadcast(model.BroadcastEvent{
		Type:       "orderbook",
		Exchange:   m.cfg.Exchange,
		MarketType: m.cfg.MarketType,
		Symbol:     m.symbol,
		Payload: model.OrderbookPayload{
			Symbol:  m.symbol,
			LocalTS: localTS,
			Bids:    snap.Bids,
			Asks:    snap.Asks,
		},
	})
}

func (m *Monitor) handleTrade(t stream.Trade) {
	// Feed replays at reconnect boundaries resend the last print.
	if t.ID != "" && t.ID == m.lastTradeID {
		metrics.TradesDeduplicated.Inc()
		return
	}
	m.lastTradeID = t.ID

	// A trade with no reported time cannot be partitioned by date.
	if t.Timestamp == 0 {
		metrics.TradesDropped.Inc()
		m.logger.Debug("dropping trade without timestamp", "trade_id", t.ID)
		return
	}

	symbol := t.Symbol
	if symbol == "" {
		symbol = m.symbol
	}

	rec := model.TradeRecord{
		Timestamp: t.Timestamp,
		Datetime:  model.FormatDatetime(t.Timestamp),
		Symbol:    symbol,
		Side:      t.Side,
		Price:     t.Price,
		Amount:    t.Amount,
		Cost:      t.Cost,
		TradeID:   t.ID,
		OrderType: t.Type,
	}

	key := model.PartitionKey{
		Entity:     model.EntityTrade,
		MarketType: m.cfg.MarketType,
		Exchange:   m.cfg.Exchange,
		Symbol:     model.NormalizeSymbol(symbol),
		Date:       model.DateFromMillis(t.Timestamp),
	}

	m.sink.Append(key, rec.Record())
	metrics.RecordsIngested.WithLabelValues(string(model.EntityTrade)).Inc()

	m.broadcaster.Broadcast(model.BroadcastEvent{
		Type:       "trade",
		Exchange:   m.cfg.Exchange,
		MarketType: m.cfg.MarketType,
		Symbol:     symbol,
		Payload:    rec,
	})
}

// reopen re-establishes the subscription, retrying at the monitor's
// retry interval until it succeeds or ctx is done.
func (m *Monitor) reopen(ctx context.Context) (stream.Source, error) {
	var src stream.Source
	op := func() error {
		var err error
		src, err = m.provider.Open(ctx, m.cfg.Exchange, m.cfg.MarketType, m.symbol)
		if err != nil {
			m.logger.Warn("resubscribe failed", "error", truncate(err.Error(), 200))
		}
		return err
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(m.cfg.RetryInterval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return src, nil
}

func truncateLevels(levels [][2]float64, depth int) []model.PriceLevel {
	n := len(levels)
	if depth < n {
		n = depth
	}
	out := make([]model.PriceLevel, n)
	for i := 0; i < n; i++ {
		out[i] = model.PriceLevel{Price: levels[i][0], Quantity: levels[i][1]}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
