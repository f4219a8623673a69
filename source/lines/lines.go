// Package lines decodes newline-delimited JSON objects, optionally gzip
// compressed.
package lines

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"streamproducer/internal/record"
	"streamproducer/source"
)

const (
	FormatJSON        = "json"
	FormatGzippedJSON = "gzipped-json"
)

type decoder struct {
	r      *bufio.Reader
	closer []io.Closer
	line   int64
	done   bool
}

// New reads JSON lines from r. Closing the decoder closes r when it is an
// io.Closer.
func New(r io.Reader) source.Decoder {
	d := &decoder{r: bufio.NewReaderSize(r, 64*1024)}
	if c, ok := r.(io.Closer); ok {
		d.closer = append(d.closer, c)
	}
	return d
}

// NewGzip reads gzip-compressed JSON lines from r.
func NewGzip(r io.Reader) (source.Decoder, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("lines: open gzip stream: %w", err)
	}
	d := New(zr).(*decoder)
	if c, ok := r.(io.Closer); ok {
		d.closer = append(d.closer, c)
	}
	return d, nil
}

func (d *decoder) Next(ctx context.Context) (record.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if d.done {
			return nil, io.EOF
		}
		raw, err := d.r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			d.done = true
		} else if err != nil {
			return nil, fmt.Errorf("lines: read: %w", err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		d.line++
		rec, err := ParseObject(raw)
		if err != nil {
			return nil, &source.DecodeError{Item: d.line, Err: err}
		}
		return rec, nil
	}
}

func (d *decoder) Close() error {
	var errs []error
	for _, c := range d.closer {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ParseObject decodes one JSON object, keeping numbers as json.Number so
// large integers survive re-encoding unchanged.
func ParseObject(raw []byte) (record.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec record.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if rec == nil {
		return nil, errors.New("expected a JSON object, got null")
	}
	return rec, nil
}

func init() {
	source.Register(FormatJSON, func(ctx context.Context, cfg source.Config) (source.Decoder, error) {
		rc, err := source.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return New(rc), nil
	})
	source.Register(FormatGzippedJSON, func(ctx context.Context, cfg source.Config) (source.Decoder, error) {
		rc, err := source.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d, err := NewGzip(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return d, nil
	})
}
