package monitor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/crypto-data/internal/stream"
)

// Group fans one (exchange, market type) subscription group out into one
// monitor per symbol.
type Group struct {
	cfg         Config
	symbols     []string
	provider    stream.Provider
	sink        Appender
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewGroup creates a monitor group.
func NewGroup(cfg Config, symbols []string, provider stream.Provider, sink Appender, broadcaster Broadcaster, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{
		cfg:         cfg,
		symbols:     symbols,
		provider:    provider,
		sink:        sink,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Run starts every symbol's monitor and waits for all of them. A single
// symbol's permanent failure is logged and contained; it never cancels
// sibling monitors, so Run only returns once ctx is done or every
// monitor has exited on its own.
func (g *Group) Run(ctx context.Context) error {
	eg := new(errgroup.Group)

	for _, symbol := range g.symbols {
		mon := New(g.cfg, symbol, g.provider, g.sink, g.broadcaster, g.logger)
		eg.Go(func() error {
			err := mon.Run(ctx)
			if err != nil && ctx.Err() == nil {
				g.logger.Error("monitor exited",
					"entity", g.cfg.Entity,
					"exchange", g.cfg.Exchange,
					"symbol", symbol,
					"error", err,
				)
			}
			return nil
		})
	}

	return eg.Wait()
}
