package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/jean18/front/internal/common"
)

// ColumnType is the logical type of a snapshot column.
type ColumnType int

const (
	String ColumnType = iota
	Float64
)

// Column describes one nullable snapshot column.
type Column struct {
	Name string
	Type ColumnType
}

// Row is anything that can be flattened into column order.
// A nil value (or nil pointer) is written as null.
type Row interface {
	Values() []any
}

// Archiver receives a copy of every snapshot written.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

var (
	errRowWidth        = errors.New("row width does not match columns")
	errUnsupportedType = errors.New("unsupported value type for column")
)

// Writer writes snapshots as snappy-compressed parquet files under
// <workDir>/raw/<source>/.
type Writer struct {
	workDir string
	source  string
	mem     memory.Allocator
	archive Archiver
	logger  *zap.Logger
}

// NewWriter creates a Writer. archive may be nil.
func NewWriter(workDir, source string, archive Archiver, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		workDir: workDir,
		source:  source,
		mem:     memory.NewGoAllocator(),
		archive: archive,
		logger:  logger,
	}
}

// Path returns the deterministic snapshot path for a table and run timestamp.
func (w *Writer) Path(table string, runTS time.Time) string {
	name := fmt.Sprintf("%s_%s.parquet", table, common.FormatRunTimestamp(runTS))
	return filepath.Join(w.workDir, "raw", w.source, name)
}

// Write serializes rows and returns the path of the written file.
func (w *Writer) Write(ctx context.Context, table string, columns []Column, rows []Row, runTS time.Time) (string, error) {
	path := w.Path(table, runTS)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := Encode(w.mem, columns, rows)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	w.logger.Info("saved snapshot", zap.String("table", table), zap.String("path", path), zap.Int("rows", len(rows)))

	if w.archive != nil {
		key := filepath.ToSlash(filepath.Join("raw", w.source, filepath.Base(path)))
		if err := w.archive.Put(ctx, key, data); err != nil {
			return "", fmt.Errorf("archive snapshot %s: %w", key, err)
		}
	}
	return path, nil
}

// Encode renders rows as a single-row-group parquet file.
// The compression codec is always snappy.
func Encode(mem memory.Allocator, columns []Column, rows []Row) ([]byte, error) {
	schema := arrowSchema(columns)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for n, row := range rows {
		vals := row.Values()
		if len(vals) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", errRowWidth, n, len(vals), len(columns))
		}
		for i, v := range vals {
			if err := appendValue(b.Field(i), v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", n, columns[i].Name, err)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("open parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return nil, fmt.Errorf("write parquet record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func arrowSchema(columns []Column) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		var dt arrow.DataType = arrow.BinaryTypes.String
		if c.Type == Float64 {
			dt = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.StringBuilder:
		switch s := v.(type) {
		case string:
			fb.Append(s)
		case *string:
			if s == nil {
				fb.AppendNull()
			} else {
				fb.Append(*s)
			}
		default:
			return fmt.Errorf("%w: %T", errUnsupportedType, v)
		}
	case *array.Float64Builder:
		switch f := v.(type) {
		case float64:
			fb.Append(f)
		case *float64:
			if f == nil {
				fb.AppendNull()
			} else {
				fb.Append(*f)
			}
		default:
			return fmt.Errorf("%w: %T", errUnsupportedType, v)
		}
	default:
		return fmt.Errorf("%w: builder %T", errUnsupportedType, b)
	}
	return nil
}
