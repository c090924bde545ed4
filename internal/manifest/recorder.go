package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/crypto-data/internal/config"
	"github.com/rickgao/crypto-data/internal/sink"
)

// recordTimeout bounds each manifest insert so a wedged database cannot
// pile up goroutines behind it.
const recordTimeout = 5 * time.Second

// Recorder inserts one manifest row per written batch file.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates a connection pool and verifies it.
func Connect(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Recorder{pool: pool, logger: logger}, nil
}

// Record inserts the manifest row for a successful flush. Failures are
// logged and swallowed; the batch file on disk is the source of truth.
func (r *Recorder) Record(res sink.Result) {
	if res.Err != nil || res.Path == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO batch_files (file_path, entity, market_type, exchange, symbol, partition_date, row_count, first_ts, last_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (file_path) DO NOTHING
	`, res.Path, string(res.Key.Entity), res.Key.MarketType, res.Key.Exchange, res.Key.Symbol, res.Key.Date, res.Records, res.FirstTS, res.LastTS)
	if err != nil {
		r.logger.Error("manifest insert failed", "path", res.Path, "error", err)
	}
}

// Close releases the connection pool.
func (r *Recorder) Close() {
	r.pool.Close()
}
