// Package avro decodes Avro object container files.
package avro

import (
	"context"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	"streamproducer/internal/record"
	"streamproducer/source"
	"streamproducer/source/lines"
)

const Format = "avro"

type decoder struct {
	ocf    *goavro.OCFReader
	plain  *goavro.Codec
	closer io.Closer
	item   int64
}

// New reads the container header from r. Records are emitted in standard
// JSON form: union values are bare, not wrapped in a map keyed by branch.
func New(r io.Reader) (source.Decoder, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("avro: open container: %w", err)
	}
	plain, err := goavro.NewCodecForStandardJSONFull(ocf.Codec().Schema())
	if err != nil {
		return nil, fmt.Errorf("avro: container schema: %w", err)
	}
	d := &decoder{ocf: ocf, plain: plain}
	if c, ok := r.(io.Closer); ok {
		d.closer = c
	}
	return d, nil
}

// Next treats any block error as fatal since the container cannot be
// resynchronised.
func (d *decoder) Next(ctx context.Context) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.ocf.Scan() {
		if err := d.ocf.Err(); err != nil {
			return nil, fmt.Errorf("avro: scan: %w", err)
		}
		return nil, io.EOF
	}
	d.item++
	datum, err := d.ocf.Read()
	if err != nil {
		return nil, fmt.Errorf("avro: read item %d: %w", d.item, err)
	}
	if _, ok := datum.(map[string]any); !ok {
		return nil, fmt.Errorf("avro: item %d is %T, want record", d.item, datum)
	}
	text, err := d.plain.TextualFromNative(nil, datum)
	if err != nil {
		return nil, fmt.Errorf("avro: encode item %d: %w", d.item, err)
	}
	rec, err := lines.ParseObject(text)
	if err != nil {
		return nil, fmt.Errorf("avro: item %d: %w", d.item, err)
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
