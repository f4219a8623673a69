package lines

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"streamproducer/internal/record"
	"streamproducer/source"
)

func collect(t *testing.T, d source.Decoder) ([]record.Record, []int64) {
	t.Helper()
	var recs []record.Record
	var bad []int64
	for {
		rec, err := d.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return recs, bad
		}
		var de *source.DecodeError
		if errors.As(err, &de) {
			bad = append(bad, de.Item)
			continue
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		recs = append(recs, rec)
	}
}

func TestDecoder_SkipsBlankAndReportsMalformed(t *testing.T) {
	in := `{"RECORD_ID":"1","AMOUNT":12345678901234567890}

  {"RECORD_ID":"2"}
not json
[1,2]
{"RECORD_ID":"3"}`
	recs, bad := collect(t, New(strings.NewReader(in)))

	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if want := []int64{3, 4}; len(bad) != 2 || bad[0] != want[0] || bad[1] != want[1] {
		t.Fatalf("malformed items = %v, want %v", bad, want)
	}
	if recs[2]["RECORD_ID"] != "3" {
		t.Fatalf("last record without trailing newline lost: %v", recs[2])
	}
	b, err := recs[0].Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), "12345678901234567890") {
		t.Fatalf("large integer not preserved: %s", b)
	}
}

func TestDecoder_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for i := 0; i < 3; i++ {
		_ = json.NewEncoder(zw).Encode(map[string]int{"n": i})
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	d, err := NewGzip(&buf)
	if err != nil {
		t.Fatalf("NewGzip: %v", err)
	}
	recs, bad := collect(t, d)
	if len(recs) != 3 || len(bad) != 0 {
		t.Fatalf("got %d records, %d errors", len(recs), len(bad))
	}
}

func TestNewGzip_RejectsPlainInput(t *testing.T) {
	if _, err := NewGzip(strings.NewReader(`{"a":1}`)); err == nil {
		t.Fatal("expected gzip header error")
	}
}

func TestDecoder_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(strings.NewReader(`{"a":1}`)).Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegistry_OpensFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(path, []byte("{\"a\":1}\n{\"a\":2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := source.NewDecoder(context.Background(), FormatJSON, source.Config{InputURL: path})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	defer d.Close()
	recs, _ := collect(t, d)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}
