// Package csv decodes CSV input with a header row into records.
package csv

import (
	"context"
	enccsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"streamproducer/internal/record"
	"streamproducer/source"
)

const Format = "csv"

type decoder struct {
	r      *enccsv.Reader
	closer io.Closer
	header []string
	row    int64
}

// New reads the header row eagerly; an empty input yields io.EOF on the
// first Next.
func New(r io.Reader) (source.Decoder, error) {
	cr := enccsv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	d := &decoder{r: cr}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	header, err := cr.Read()
	switch {
	case errors.Is(err, io.EOF):
		return d, nil
	case err != nil:
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	d.header = make([]string, len(header))
	for i, h := range header {
		d.header[i] = strings.TrimSpace(h)
	}
	return d, nil
}

func (d *decoder) Next(ctx context.Context) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.header == nil {
		return nil, io.EOF
	}
	fields, err := d.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	d.row++
	if err != nil {
		var pe *enccsv.ParseError
		if errors.As(err, &pe) {
			return nil, &source.DecodeError{Item: d.row, Err: err}
		}
		return nil, fmt.Errorf("csv: read: %w", err)
	}

	rec := make(record.Record, len(d.header))
	for i, name := range d.header {
		if i < len(fields) {
			rec[name] = fields[i]
		} else {
			rec[name] = nil
		}
	}
	return rec, nil
}

func (d *decoder) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

func init() {
	source.Register(Format, func(ctx context.Context, cfg source.Config) (source.Decoder, error) {
		rc, err := source.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d, err := New(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return d, nil
	})
}
