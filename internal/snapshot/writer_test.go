package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

type testRow struct {
	id    string
	name  *string
	value *float64
}

func (r testRow) Values() []any { return []any{r.id, r.name, r.value} }

var testColumns = []Column{
	{Name: "id", Type: String},
	{Name: "name", Type: String},
	{Name: "value", Type: Float64},
}

type fakeArchive struct {
	keys []string
	size int
}

func (f *fakeArchive) Put(_ context.Context, key string, data []byte) error {
	f.keys = append(f.keys, key)
	f.size = len(data)
	return nil
}

func TestWriterPath(t *testing.T) {
	w := NewWriter("/work", "weather_api", nil, nil)
	ts := time.Date(2024, 8, 29, 3, 11, 13, 230100000, time.UTC)

	got := w.Path("table_mock", ts)
	want := filepath.Join("/work", "raw", "weather_api", "table_mock_2024-08-29T03:11:13.230100+00:00.parquet")
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archive := &fakeArchive{}
	w := NewWriter(dir, "weather_api", archive, nil)

	name := "Lafayette High School"
	temp := 22.39
	rows := []Row{
		testRow{id: "0112W", name: &name, value: &temp},
		testRow{id: "0112W"},
	}

	ts := time.Date(2024, 8, 29, 3, 11, 13, 0, time.UTC)
	path, err := w.Write(context.Background(), "stations", testColumns, rows, ts)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != w.Path("stations", ts) {
		t.Fatalf("returned path %q differs from Path()", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer rdr.Close()
	cc, err := rdr.MetaData().RowGroup(0).ColumnChunk(0)
	if err != nil {
		t.Fatalf("column chunk: %v", err)
	}
	if cc.Compression() != compress.Codecs.Snappy {
		t.Fatalf("compression = %v, want snappy", cc.Compression())
	}

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data), parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	defer tbl.Release()

	if tbl.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.NumRows())
	}
	names := tbl.Column(1).Data().Chunk(0).(*array.String)
	if names.Value(0) != name || !names.IsNull(1) {
		t.Fatalf("unexpected name column: %v", names)
	}
	values := tbl.Column(2).Data().Chunk(0).(*array.Float64)
	if values.Value(0) != temp || !values.IsNull(1) {
		t.Fatalf("unexpected value column: %v", values)
	}

	if len(archive.keys) != 1 || archive.keys[0] != "raw/weather_api/"+filepath.Base(path) {
		t.Fatalf("archive keys = %v", archive.keys)
	}
	if archive.size != len(data) {
		t.Fatalf("archived %d bytes, wrote %d", archive.size, len(data))
	}
}

func TestWriteCreatesDirectoryIdempotently(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "weather_api", nil, nil)

	for i := 0; i < 2; i++ {
		ts := time.Date(2024, 8, 29, 0, i, 0, 0, time.UTC)
		if _, err := w.Write(context.Background(), "stations", testColumns, []Row{testRow{id: "a"}}, ts); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "raw", "weather_api"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("files = %d, want 2", len(entries))
	}
}

type badRow struct{}

func (badRow) Values() []any { return []any{"only-one"} }

type wrongTypeRow struct{}

func (wrongTypeRow) Values() []any { return []any{"id", "name", "not-a-float"} }

func TestEncodeRejectsMalformedRows(t *testing.T) {
	mem := memory.NewGoAllocator()

	if _, err := Encode(mem, testColumns, []Row{badRow{}}); !errors.Is(err, errRowWidth) {
		t.Fatalf("expected errRowWidth, got %v", err)
	}
	if _, err := Encode(mem, testColumns, []Row{wrongTypeRow{}}); !errors.Is(err, errUnsupportedType) {
		t.Fatalf("expected errUnsupportedType, got %v", err)
	}
}
