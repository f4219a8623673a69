// Package parquet decodes Parquet files row by row. Column values are
// rendered as strings; nulls stay null.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"streamproducer/internal/record"
	"streamproducer/source"
)

const (
	Format    = "parquet"
	batchSize = 1024
)

type decoder struct {
	pf *file.Reader
	rr pqarrow.RecordReader

	batch arrow.Record
	row   int
}

// New opens a Parquet file. The reader must support random access.
func New(ctx context.Context, r pq.ReaderAtSeeker) (source.Decoder, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("parquet: open file: %w", err)
	}
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: batchSize}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("parquet: arrow reader: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("parquet: record reader: %w", err)
	}
	return &decoder{pf: pf, rr: rr}, nil
}

func (d *decoder) Next(ctx context.Context) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for d.batch == nil || d.row >= int(d.batch.NumRows()) {
		d.releaseBatch()
		if !d.rr.Next() {
			if err := d.rr.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("parquet: read batch: %w", err)
			}
			return nil, io.EOF
		}
		d.batch = d.rr.Record()
		d.batch.Retain()
		d.row = 0
	}

	rec := make(record.Record, d.batch.NumCols())
	schema := d.batch.Schema()
	for i, col := range d.batch.Columns() {
		name := schema.Field(i).Name
		if col.IsNull(d.row) {
			rec[name] = nil
			continue
		}
		rec[name] = col.ValueStr(d.row)
	}
	d.row++
	return rec, nil
}

func (d *decoder) releaseBatch() {
	if d.batch != nil {
		d.batch.Release()
		d.batch = nil
	}
}

func (d *decoder) Close() error {
	d.releaseBatch()
	d.rr.Release()
	return d.pf.Close()
}

// openSeekable returns local files directly and buffers anything else in
// memory, since Parquet metadata sits at the end of the file.
func openSeekable(ctx context.Context, cfg source.Config) (pq.ReaderAtSeeker, error) {
	u := cfg.InputURL
	if u != source.Stdin && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		f, err := os.Open(strings.TrimPrefix(u, "file://"))
		if err != nil {
			return nil, fmt.Errorf("parquet: open input: %w", err)
		}
		return f, nil
	}
	rc, err := source.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("parquet: buffer input: %w", err)
	}
	return bytes.NewReader(b), nil
}

func init() {
	source.Register(Format, func(ctx context.Context, cfg source.Config) (source.Decoder, error) {
		r, err := openSeekable(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d, err := New(ctx, r)
		if err != nil {
			if c, ok := r.(io.Closer); ok {
				c.Close()
			}
			return nil, err
		}
		return d, nil
	})
}
