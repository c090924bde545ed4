package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/crypto-data/internal/batch"
	"github.com/rickgao/crypto-data/internal/config"
	"github.com/rickgao/crypto-data/internal/hub"
	"github.com/rickgao/crypto-data/internal/manifest"
	"github.com/rickgao/crypto-data/internal/metrics"
	"github.com/rickgao/crypto-data/internal/model"
	"github.com/rickgao/crypto-data/internal/monitor"
	"github.com/rickgao/crypto-data/internal/server"
	"github.com/rickgao/crypto-data/internal/sink"
	"github.com/rickgao/crypto-data/internal/stream"
	"github.com/rickgao/crypto-data/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"data_root", cfg.DataRoot,
		"orderbooks", cfg.Orderbooks.Enabled,
		"trades", cfg.Trades.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("collector failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.CollectorConfig, logger *slog.Logger) error {
	// Optional batch-file manifest
	var recorder *manifest.Recorder
	if cfg.Manifest.Enabled {
		var err error
		recorder, err = manifest.Connect(ctx, cfg.Manifest.Database, logger)
		if err != nil {
			return err
		}
		defer recorder.Close()
		logger.Info("manifest database connected", "host", cfg.Manifest.Database.Host)
	}

	onFlush := func(res sink.Result) {
		if res.Err != nil {
			metrics.BatchWriteFailures.WithLabelValues(string(res.Key.Entity)).Inc()
			return
		}
		metrics.BatchesWritten.WithLabelValues(string(res.Key.Entity)).Inc()
		if recorder != nil {
			go recorder.Record(res)
		}
	}

	// One batch writer for both entity types: the shared file name
	// sequence is the collision guard.
	writer := batch.NewWriter(logger)

	broadcastHub := hub.New(logger)
	if err := broadcastHub.SetConfig(configPayload(cfg)); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:        cfg.Server.Addr,
		MetricsPath: cfg.Server.MetricsPath,
	}, broadcastHub, logger)

	provider := stream.Registry{}

	var sinks []*sink.Sink
	var groups []*monitor.Group

	if cfg.Orderbooks.Enabled {
		obSink := sink.New(sink.Config{
			DataRoot:      cfg.DataRoot,
			Entity:        model.EntityOrderbook,
			BatchSize:     cfg.Orderbooks.BatchSize,
			FlushInterval: cfg.Orderbooks.FlushInterval,
			Columns:       model.OrderbookColumns(cfg.Orderbooks.DepthLevels),
			TimeColumn:    "local_ts",
		}, writer, onFlush, logger)
		sinks = append(sinks, obSink)

		for _, g := range cfg.Orderbooks.Groups {
			groups = append(groups, monitor.NewGroup(monitor.Config{
				Entity:        model.EntityOrderbook,
				Exchange:      g.Exchange,
				MarketType:    g.MarketType,
				Depth:         cfg.Orderbooks.DepthLevels,
				StallCeiling:  config.DefaultStallCeiling,
				RetryInterval: config.DefaultRetryInterval,
			}, g.Symbols, provider, obSink, broadcastHub, logger))
		}
	}

	if cfg.Trades.Enabled {
		trSink := sink.New(sink.Config{
			DataRoot:      cfg.DataRoot,
			Entity:        model.EntityTrade,
			BatchSize:     cfg.Trades.BatchSize,
			FlushInterval: cfg.Trades.FlushInterval,
			Columns:       model.TradeColumns(),
			TimeColumn:    "timestamp",
		}, writer, onFlush, logger)
		sinks = append(sinks, trSink)

		for _, g := range cfg.Trades.Groups {
			groups = append(groups, monitor.NewGroup(monitor.Config{
				Entity:        model.EntityTrade,
				Exchange:      g.Exchange,
				MarketType:    g.MarketType,
				RetryInterval: config.DefaultRetryInterval,
			}, g.Symbols, provider, trSink, broadcastHub, logger))
		}
	}

	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	eg := new(errgroup.Group)
	for _, g := range groups {
		eg.Go(func() error { return g.Run(ctx) })
	}

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"monitor_groups", len(groups),
		"listen", cfg.Server.Addr,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	// Monitors observe the cancellation and flush their sinks on exit.
	if err := eg.Wait(); err != nil {
		logger.Warn("monitor group error during shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop drains any buffer the monitors did not own.
	for _, s := range sinks {
		s.Stop(shutdownCtx)
	}
	srv.Stop(shutdownCtx)

	logger.Info("collector stopped")
	return nil
}

// configPayload builds the retained configuration frame sent to every
// new broadcast subscriber.
func configPayload(cfg *config.CollectorConfig) map[string]any {
	payload := map[string]any{
		"type":        "config",
		"instance_id": cfg.Instance.ID,
		"orderbooks": map[string]any{
			"enabled":      cfg.Orderbooks.Enabled,
			"depth_levels": cfg.Orderbooks.DepthLevels,
			"groups":       cfg.Orderbooks.Groups,
		},
		"trades": map[string]any{
			"enabled": cfg.Trades.Enabled,
			"groups":  cfg.Trades.Groups,
		},
	}
	return payload
}
