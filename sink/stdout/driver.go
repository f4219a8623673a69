package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"streamproducer/sink"
)

type Config struct {
	DelayMS      int  `koanf:"delay_ms"`      // artificial per-message delay
	PrintCounter bool `koanf:"print_counter"` // prepend seq#

	Writer io.Writer `koanf:"-"` // defaults to os.Stdout
}

type driver struct {
	cfg Config

	mu     sync.Mutex // guards w+seq
	w      io.Writer
	seq    uint64
	closed bool
}

func (d *driver) Configure(_ context.Context, raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	d.w = c.Writer
	if d.w == nil {
		d.w = os.Stdout
	}
	return nil
}

func (d *driver) Send(ctx context.Context, msg []byte) error {
	if d.cfg.DelayMS > 0 {
		select {
		case <-time.After(time.Duration(d.cfg.DelayMS) * time.Millisecond):
		case <-ctx.Done():
			return sink.SendError("stdout", ctx.Err())
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return sink.SendError("stdout", io.ErrClosedPipe)
	}
	d.seq++
	var err error
	if d.cfg.PrintCounter {
		_, err = fmt.Fprintf(d.w, "[sink %06d] %s\n", d.seq, msg)
	} else {
		_, err = fmt.Fprintf(d.w, "%s\n", msg)
	}
	if err != nil {
		return sink.SendError("stdout", err)
	}
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
