package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/crypto-data/internal/model"
)

// BatchWriter writes one batch of records into one partition directory.
type BatchWriter interface {
	Write(dir string, records []model.Record, prefix string, columns []model.Column) (string, error)
}

// Result describes one completed flush attempt.
type Result struct {
	Key     model.PartitionKey
	Path    string // empty on failure
	Records int
	FirstTS int64 // ms epoch of the first record in the batch
	LastTS  int64 // ms epoch of the last record in the batch
	Err     error
}

// Config holds per-entity-type sink settings.
type Config struct {
	DataRoot      string
	Entity        model.EntityType
	BatchSize     int
	FlushInterval time.Duration
	Columns       []model.Column
	TimeColumn    string // record key carrying the ms timestamp ("local_ts" or "timestamp")
}

// Stats is a point-in-time snapshot of sink counters.
type Stats struct {
	Partitions     int
	Appended       int64
	Flushes        int64
	FlushFailures  int64
	RecordsWritten int64
}

// Sink accumulates records per partition key and flushes them as batch
// files. All methods are safe for concurrent use.
type Sink struct {
	cfg     Config
	writer  BatchWriter
	logger  *slog.Logger
	onFlush func(Result) // optional, invoked after every flush attempt

	// partitions maps partition key to its buffer. The map itself is
	// guarded by mu; each buffer carries its own locks so flushes of
	// unrelated partitions proceed independently.
	mu         sync.Mutex
	partitions map[model.PartitionKey]*partition

	statsMu sync.Mutex
	stats   Stats

	// Lifecycle (interval flush loop)
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// partition is the mutable buffer state for one partition key.
type partition struct {
	mu        sync.Mutex // guards records and lastFlush
	flushMu   sync.Mutex // serializes flushes of this partition
	records   []model.Record
	lastFlush time.Time
}

// New creates a sink. onFlush may be nil.
func New(cfg Config, writer BatchWriter, onFlush func(Result), logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:        cfg,
		writer:     writer,
		logger:     logger,
		onFlush:    onFlush,
		partitions: make(map[model.PartitionKey]*partition),
	}
}

// Start launches the interval flush loop. The loop checks each
// partition's elapsed time at half the flush interval so a buffer whose
// interval has passed flushes without waiting for the next append.
func (s *Sink) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	period := s.cfg.FlushInterval / 2
	if period < 10*time.Millisecond {
		period = 10 * time.Millisecond
	}

	s.wg.Add(1)
	go s.flushLoop(ctx, period)

	s.logger.Info("sink started",
		"entity", s.cfg.Entity,
		"batch_size", s.cfg.BatchSize,
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop halts the interval loop and drains every buffer.
func (s *Sink) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("sink stop timed out", "entity", s.cfg.Entity)
	}

	s.FlushAll()
	s.logger.Info("sink stopped", "entity", s.cfg.Entity)
	return nil
}

// Append adds a record to its partition's buffer, creating the buffer if
// absent, then evaluates that buffer's flush triggers.
func (s *Sink) Append(key model.PartitionKey, rec model.Record) {
	p := s.partition(key)

	p.mu.Lock()
	p.records = append(p.records, rec)
	due := len(p.records) >= s.cfg.BatchSize || time.Since(p.lastFlush) >= s.cfg.FlushInterval
	p.mu.Unlock()

	s.statsMu.Lock()
	s.stats.Appended++
	s.statsMu.Unlock()

	if due {
		s.flush(key, p)
	}
}

// FlushAll drains every non-empty buffer unconditionally. Used on
// shutdown and on a monitored stream's terminal close so no buffered
// record is lost.
func (s *Sink) FlushAll() {
	s.mu.Lock()
	keys := make([]model.PartitionKey, 0, len(s.partitions))
	parts := make([]*partition, 0, len(s.partitions))
	for k, p := range s.partitions {
		keys = append(keys, k)
		parts = append(parts, p)
	}
	s.mu.Unlock()

	for i, p := range parts {
		s.flush(keys[i], p)
	}
}

// Stats returns a snapshot of sink counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	n := len(s.partitions)
	s.mu.Unlock()

	s.statsMu.Lock()
	st := s.stats
	s.statsMu.Unlock()
	st.Partitions = n
	return st
}

// partition returns the buffer for key, creating it on first use. A new
// buffer starts its interval clock at creation time so the first record
// does not flush immediately.
func (s *Sink) partition(key model.PartitionKey) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.partitions[key]
	if !ok {
		p = &partition{lastFlush: time.Now()}
		s.partitions[key] = p
	}
	return p
}

// flushLoop flushes buffers whose interval has elapsed.
func (s *Sink) flushLoop(ctx context.Context, period time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushDue()
		}
	}
}

func (s *Sink) flushDue() {
	s.mu.Lock()
	keys := make([]model.PartitionKey, 0, len(s.partitions))
	parts := make([]*partition, 0, len(s.partitions))
	for k, p := range s.partitions {
		keys = append(keys, k)
		parts = append(parts, p)
	}
	s.mu.Unlock()

	for i, p := range parts {
		p.mu.Lock()
		due := len(p.records) > 0 && time.Since(p.lastFlush) >= s.cfg.FlushInterval
		p.mu.Unlock()
		if due {
			s.flush(keys[i], p)
		}
	}
}

// flush snapshots and clears the buffer, then writes the snapshot. The
// snapshot-and-clear is one exclusive step: records appended during the
// write land in a fresh buffer and belong to the next batch. flushMu
// keeps flushes of one partition strictly sequential.
func (s *Sink) flush(key model.PartitionKey, p *partition) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	if len(p.records) == 0 {
		p.mu.Unlock()
		return
	}
	snapshot := p.records
	p.records = nil
	p.lastFlush = time.Now()
	p.mu.Unlock()

	res := Result{
		Key:     key,
		Records: len(snapshot),
		FirstTS: s.recordTS(snapshot[0]),
		LastTS:  s.recordTS(snapshot[len(snapshot)-1]),
	}

	path, err := s.writer.Write(key.Dir(s.cfg.DataRoot), snapshot, s.cfg.Entity.FilePrefix(), s.cfg.Columns)
	if err != nil {
		// The snapshot is not re-queued: a retry could duplicate records
		// if the file was partially visible. Ingestion continues.
		res.Err = err
		s.logger.Error("batch write failed",
			"entity", s.cfg.Entity,
			"exchange", key.Exchange,
			"symbol", key.Symbol,
			"records", len(snapshot),
			"error", err,
		)
		s.statsMu.Lock()
		s.stats.Flushes++
		s.stats.FlushFailures++
		s.statsMu.Unlock()
	} else {
		res.Path = path
		s.logger.Info("wrote batch",
			"entity", s.cfg.Entity,
			"path", path,
			"records", len(snapshot),
		)
		s.statsMu.Lock()
		s.stats.Flushes++
		s.stats.RecordsWritten += int64(len(snapshot))
		s.statsMu.Unlock()
	}

	if s.onFlush != nil {
		s.onFlush(res)
	}
}

func (s *Sink) recordTS(rec model.Record) int64 {
	if s.cfg.TimeColumn == "" {
		return 0
	}
	if v, ok := rec[s.cfg.TimeColumn].(int64); ok {
		return v
	}
	return 0
}
