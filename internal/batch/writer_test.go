package batch

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/rickgao/crypto-data/internal/model"
)

var fileNameRe = regexp.MustCompile(`^trades-\d{13}-\d{6}\.parquet$`)

func testColumns() []model.Column {
	return []model.Column{
		{Name: "timestamp", Kind: model.ColumnInt64},
		{Name: "symbol", Kind: model.ColumnString},
		{Name: "price", Kind: model.ColumnDouble},
	}
}

func testRecords() []model.Record {
	return []model.Record{
		{"timestamp": int64(1705320000123), "symbol": "BTC/USDT", "price": 42000.5},
		{"timestamp": int64(1705320000456), "symbol": "BTC/USDT", "price": 42001.0},
	}
}

func rowCount(t *testing.T, path string) int64 {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open parquet file: %v", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 2)
	if err != nil {
		t.Fatalf("create parquet reader: %v", err)
	}
	defer pr.ReadStop()

	return pr.GetNumRows()
}

func TestWriter_Write(t *testing.T) {
	w := NewWriter(nil)
	dir := filepath.Join(t.TempDir(), "trades", "spot", "binance", "BTC_USDT", "2024-01-15")

	path, err := w.Write(dir, testRecords(), "trades", testColumns())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if filepath.Dir(path) != dir {
		t.Errorf("path dir = %q, want %q", filepath.Dir(path), dir)
	}
	if !fileNameRe.MatchString(filepath.Base(path)) {
		t.Errorf("file name %q does not match {prefix}-{millis}-{seq}.parquet", filepath.Base(path))
	}

	if got := rowCount(t, path); got != 2 {
		t.Errorf("row count = %d, want 2", got)
	}
}

func TestWriter_WriteNullsAndStrayKeys(t *testing.T) {
	w := NewWriter(nil)
	dir := t.TempDir()

	records := []model.Record{
		// price absent: explicit null, not an omitted column
		{"timestamp": int64(1), "symbol": "ETH/USDT"},
		// stray key must not break the rectangular schema
		{"timestamp": int64(2), "symbol": "ETH/USDT", "price": 1.5, "stray": "x"},
	}

	path, err := w.Write(dir, records, "trades", testColumns())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := rowCount(t, path); got != 2 {
		t.Errorf("row count = %d, want 2", got)
	}
}

func TestWriter_UniqueNamesWithinMillisecond(t *testing.T) {
	w := NewWriter(nil)
	dir := t.TempDir()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path, err := w.Write(dir, testRecords(), "trades", testColumns())
		if err != nil {
			t.Fatalf("Write #%d failed: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate file name %q", path)
		}
		seen[path] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("files in dir = %d, want 5", len(entries))
	}
}

func TestWriter_EmptyBatch(t *testing.T) {
	w := NewWriter(nil)

	if _, err := w.Write(t.TempDir(), nil, "trades", testColumns()); err != ErrNoRecords {
		t.Errorf("Write(empty) error = %v, want ErrNoRecords", err)
	}
}

func TestWriter_CreatesNestedDirectories(t *testing.T) {
	w := NewWriter(nil)
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	if _, err := w.Write(dir, testRecords(), "trades", testColumns()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("partition dir not created: %v", err)
	}
}
