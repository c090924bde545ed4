package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/rickgao/crypto-data/internal/model"
)

// ErrNoRecords is returned when Write is called with an empty batch.
var ErrNoRecords = errors.New("no records to write")

// Writer serializes record batches to parquet files. It is safe for
// concurrent use; the only shared state is the file name sequence.
type Writer struct {
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewWriter creates a batch writer.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Write serializes records into a new parquet file under dir, creating
// the directory if needed. Rows are emitted strictly in column order; a
// record missing a column maps to an explicit null. Returns the final
// file path. On any failure the partial output file is removed and
// existing files in dir are left untouched.
func (w *Writer) Write(dir string, records []model.Record, prefix string, columns []model.Column) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create partition dir: %w", err)
	}

	name := fmt.Sprintf("%s-%d-%06d.parquet", prefix, time.Now().UnixMilli(), w.seq.Add(1))
	path := filepath.Join(dir, name)

	if err := w.writeFile(path, records, columns); err != nil {
		// Best-effort cleanup of the partial file.
		os.Remove(path)
		return "", err
	}

	return path, nil
}

func (w *Writer) writeFile(path string, records []model.Record, columns []model.Column) error {
	schema, err := buildSchema(columns)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw, err := writer.NewJSONWriter(schema, fw, 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row, err := json.Marshal(project(rec, columns))
		if err != nil {
			fw.Close()
			return fmt.Errorf("encode record: %w", err)
		}
		if err := pw.Write(string(row)); err != nil {
			fw.Close()
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	return nil
}

// buildSchema renders the column layout as a parquet-go JSON schema.
// All columns are OPTIONAL so absent record keys become nulls.
func buildSchema(columns []model.Column) (string, error) {
	type node struct {
		Tag    string `json:"Tag"`
		Fields []node `json:"Fields,omitempty"`
	}

	root := node{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, col := range columns {
		var tag string
		switch col.Kind {
		case model.ColumnInt64:
			tag = fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", col.Name)
		case model.ColumnDouble:
			tag = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", col.Name)
		case model.ColumnString:
			tag = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", col.Name)
		default:
			return "", fmt.Errorf("unknown column kind %d for %q", col.Kind, col.Name)
		}
		root.Fields = append(root.Fields, node{Tag: tag})
	}

	data, err := json.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// project restricts a record to the schema's columns, dropping stray
// keys and nil values so the writer emits clean nulls.
func project(rec model.Record, columns []model.Column) map[string]any {
	row := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := rec[col.Name]; ok && v != nil {
			row[col.Name] = v
		}
	}
	return row
}
