package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/crypto-data/internal/model"
)

// fakeWriter captures batches instead of writing parquet files.
type fakeWriter struct {
	mu      sync.Mutex
	batches [][]model.Record
	dirs    []string
	err     error
}

func (f *fakeWriter) Write(dir string, records []model.Record, prefix string, columns []model.Column) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	batch := make([]model.Record, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	f.dirs = append(f.dirs, dir)
	return dir + "/fake.parquet", nil
}

func (f *fakeWriter) snapshot() [][]model.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]model.Record, len(f.batches))
	copy(out, f.batches)
	return out
}

func testKey(symbol string) model.PartitionKey {
	return model.PartitionKey{
		Entity:     model.EntityTrade,
		MarketType: "spot",
		Exchange:   "binance",
		Symbol:     symbol,
		Date:       "2024-01-15",
	}
}

func testConfig(batchSize int, interval time.Duration) Config {
	return Config{
		DataRoot:      "/data",
		Entity:        model.EntityTrade,
		BatchSize:     batchSize,
		FlushInterval: interval,
		TimeColumn:    "timestamp",
	}
}

func rec(id int) model.Record {
	return model.Record{"timestamp": int64(id), "trade_id": fmt.Sprintf("t-%d", id)}
}

func TestSink_FlushOnBatchSize(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(2, time.Hour), fw, nil, nil)

	s.Append(testKey("BTC_USDT"), rec(1))

	if got := len(fw.snapshot()); got != 0 {
		t.Fatalf("flushes after 1 append = %d, want 0", got)
	}

	s.Append(testKey("BTC_USDT"), rec(2))

	batches := fw.snapshot()
	if len(batches) != 1 {
		t.Fatalf("flushes after 2 appends = %d, want exactly 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batches[0]))
	}
	if batches[0][0]["trade_id"] != "t-1" || batches[0][1]["trade_id"] != "t-2" {
		t.Errorf("batch order = [%v, %v], want [t-1, t-2]", batches[0][0]["trade_id"], batches[0][1]["trade_id"])
	}
}

func TestSink_FlushOnInterval(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(1000, 150*time.Millisecond), fw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop(context.Background())

	s.Append(testKey("BTC_USDT"), rec(1))

	deadline := time.After(2 * time.Second)
	for {
		if batches := fw.snapshot(); len(batches) >= 1 {
			if len(batches) != 1 {
				t.Fatalf("flushes = %d, want exactly 1", len(batches))
			}
			if len(batches[0]) != 1 || batches[0][0]["trade_id"] != "t-1" {
				t.Fatalf("batch = %v, want [t-1]", batches[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no interval flush within 2s")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSink_BelowThresholdsNeverFlushes(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(10, time.Hour), fw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	for i := 0; i < 9; i++ {
		s.Append(testKey("BTC_USDT"), rec(i))
	}

	time.Sleep(100 * time.Millisecond)

	if got := len(fw.snapshot()); got != 0 {
		t.Errorf("flushes = %d, want 0 below both thresholds", got)
	}
	cancel()
}

func TestSink_FlushAllDrainsEveryPartition(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(100, time.Hour), fw, nil, nil)

	s.Append(testKey("BTC_USDT"), rec(1))
	s.Append(testKey("ETH_USDT"), rec(2))
	s.Append(testKey("ETH_USDT"), rec(3))

	s.FlushAll()

	batches := fw.snapshot()
	if len(batches) != 2 {
		t.Fatalf("flushes = %d, want 2 (one per partition)", len(batches))
	}

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 3 {
		t.Errorf("records flushed = %d, want 3", total)
	}

	// Everything drained: a second FlushAll writes nothing.
	s.FlushAll()
	if got := len(fw.snapshot()); got != 2 {
		t.Errorf("flushes after second FlushAll = %d, want still 2", got)
	}
}

func TestSink_NoDuplicatesNoGaps(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(3, time.Hour), fw, nil, nil)
	key := testKey("BTC_USDT")

	const n = 20
	for i := 0; i < n; i++ {
		s.Append(key, rec(i))
	}
	s.FlushAll()

	var got []string
	for _, b := range fw.snapshot() {
		for _, r := range b {
			got = append(got, r["trade_id"].(string))
		}
	}

	if len(got) != n {
		t.Fatalf("total records = %d, want %d", len(got), n)
	}
	for i, id := range got {
		if want := fmt.Sprintf("t-%d", i); id != want {
			t.Fatalf("record %d = %q, want %q (order must be preserved)", i, id, want)
		}
	}
}

func TestSink_WriteFailureDoesNotStopIngestion(t *testing.T) {
	fw := &fakeWriter{err: errors.New("disk full")}

	var results []Result
	var mu sync.Mutex
	s := New(testConfig(2, time.Hour), fw, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}, nil)
	key := testKey("BTC_USDT")

	s.Append(key, rec(1))
	s.Append(key, rec(2)) // flush fails, snapshot lost

	mu.Lock()
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want one failed result", results)
	}
	mu.Unlock()

	// Writer recovers; the next batch is fresh, the lost one is not re-queued.
	fw.mu.Lock()
	fw.err = nil
	fw.mu.Unlock()

	s.Append(key, rec(3))
	s.Append(key, rec(4))

	batches := fw.snapshot()
	if len(batches) != 1 {
		t.Fatalf("successful flushes = %d, want 1", len(batches))
	}
	if batches[0][0]["trade_id"] != "t-3" {
		t.Errorf("first record after failure = %v, want t-3 (no re-queue)", batches[0][0]["trade_id"])
	}

	st := s.Stats()
	if st.FlushFailures != 1 {
		t.Errorf("FlushFailures = %d, want 1", st.FlushFailures)
	}
	if st.RecordsWritten != 2 {
		t.Errorf("RecordsWritten = %d, want 2", st.RecordsWritten)
	}
}

func TestSink_PartitionsAreIndependent(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(2, time.Hour), fw, nil, nil)

	s.Append(testKey("BTC_USDT"), rec(1))
	s.Append(testKey("ETH_USDT"), rec(2))

	// Neither partition reached its batch size.
	if got := len(fw.snapshot()); got != 0 {
		t.Fatalf("flushes = %d, want 0", got)
	}

	s.Append(testKey("BTC_USDT"), rec(3))

	batches := fw.snapshot()
	if len(batches) != 1 {
		t.Fatalf("flushes = %d, want 1 (BTC only)", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(batches[0]))
	}
}

func TestSink_ResultCarriesTimeRange(t *testing.T) {
	fw := &fakeWriter{}

	var got Result
	s := New(testConfig(2, time.Hour), fw, func(r Result) { got = r }, nil)
	key := testKey("BTC_USDT")

	s.Append(key, rec(100))
	s.Append(key, rec(200))

	if got.FirstTS != 100 || got.LastTS != 200 {
		t.Errorf("time range = [%d, %d], want [100, 200]", got.FirstTS, got.LastTS)
	}
	if got.Records != 2 {
		t.Errorf("Records = %d, want 2", got.Records)
	}
	if got.Key != key {
		t.Errorf("Key = %+v, want %+v", got.Key, key)
	}
}

func TestSink_ConcurrentAppends(t *testing.T) {
	fw := &fakeWriter{}
	s := New(testConfig(5, time.Hour), fw, nil, nil)

	var wg sync.WaitGroup
	symbols := []string{"BTC_USDT", "ETH_USDT", "SOL_USDT", "XRP_USDT"}
	const perSymbol = 50

	for _, sym := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSymbol; i++ {
				s.Append(testKey(sym), rec(i))
			}
		}()
	}
	wg.Wait()
	s.FlushAll()

	total := 0
	for _, b := range fw.snapshot() {
		total += len(b)
	}
	if want := len(symbols) * perSymbol; total != want {
		t.Errorf("total records = %d, want %d", total, want)
	}
}
