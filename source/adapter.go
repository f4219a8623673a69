// Package source turns an input (file, URL, stdin or socket) in one of the
// supported formats into a lazy sequence of records.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"streamproducer/internal/record"
)

// Decoder yields one record per Next call and io.EOF once the input is
// exhausted. A *DecodeError means the current item was malformed and the
// decoder can continue; any other error is fatal.
type Decoder interface {
	Next(ctx context.Context) (record.Record, error)
	Close() error
}

// DecodeError reports a malformed item at a 1-based position in the input.
type DecodeError struct {
	Item int64
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("source: decode item %d: %v", e.Item, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is a per-item decode failure.
func IsRecoverable(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

type Config struct {
	InputURL    string        `koanf:"input_url"`
	HTTPTimeout time.Duration `koanf:"http_timeout"`
	Socket      SocketConfig  `koanf:"socket"`
}

type SocketConfig struct {
	Addr        string `koanf:"addr"`
	MaxLineSize int    `koanf:"max_line_size"`
	BufferSize  int    `koanf:"buffer_size"`
}

/*──────── registry ───────*/

type Factory func(ctx context.Context, cfg Config) (Decoder, error)

var reg = map[string]Factory{}

// Register is called from each format's init().
func Register(format string, f Factory) { reg[format] = f }

func NewDecoder(ctx context.Context, format string, cfg Config) (Decoder, error) {
	f, ok := reg[format]
	if !ok {
		return nil, fmt.Errorf("source: unsupported format %q", format)
	}
	return f(ctx, cfg)
}

// Formats lists registered format names in sorted order.
func Formats() []string {
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
