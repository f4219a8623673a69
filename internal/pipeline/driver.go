// Package pipeline drives records from a decoder through normalization,
// the record window and the rate governor into size-bounded messages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"streamproducer/internal/batch"
	"streamproducer/internal/governor"
	"streamproducer/internal/logging"
	"streamproducer/internal/record"
	"streamproducer/internal/telemetry"
	"streamproducer/sink"
	"streamproducer/source"
)

// ErrSinkSend marks a run aborted because the sink rejected a message.
var ErrSinkSend = errors.New("pipeline: sink send failed")

type Config struct {
	MaxMessageSize    int `koanf:"max_message_size"`
	RecordsPerMessage int `koanf:"records_per_message"`
	// RecordMin is the 1-based index of the first item sent.
	RecordMin int64 `koanf:"record_min"`
	// RecordMax is the 1-based index of the first item never read; 0 means
	// unbounded.
	RecordMax int64 `koanf:"record_max"`
}

type Driver struct {
	cfg      Config
	dec      source.Decoder
	snk      sink.Adapter
	gov      governor.Governor
	norm     *record.Normalizer
	counters *telemetry.Counters
	acc      *batch.Accumulator

	item int64 // items pulled from the decoder so far
}

func NewDriver(cfg Config, dec source.Decoder, snk sink.Adapter, gov governor.Governor, norm *record.Normalizer, counters *telemetry.Counters) *Driver {
	if gov == nil {
		gov = governor.None{}
	}
	if norm == nil {
		norm = record.NewNormalizer(record.NormalizerConfig{})
	}
	if counters == nil {
		counters = telemetry.NewCounters()
	}
	return &Driver{
		cfg:      cfg,
		dec:      dec,
		snk:      snk,
		gov:      gov,
		norm:     norm,
		counters: counters,
		acc:      batch.New(cfg.MaxMessageSize, cfg.RecordsPerMessage),
	}
}

// Run consumes the decoder until end of input, a governor stop, context
// cancellation or a fatal error. The first three flush the pending batch
// and return nil.
func (d *Driver) Run(ctx context.Context) error {
	log := logging.Component("pipeline")
	for {
		if d.cfg.RecordMax > 0 && d.item+1 >= d.cfg.RecordMax {
			log.Debug("record_max reached", "record_max", d.cfg.RecordMax)
			return d.finish(ctx, "record_max")
		}

		if d.item+1 >= d.cfg.RecordMin {
			if d.await(ctx) {
				return d.finish(ctx, "stopped")
			}
		}

		rec, err := d.dec.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return d.finish(ctx, "end of input")
			case ctx.Err() != nil:
				return d.finish(ctx, "cancelled")
			case !source.IsRecoverable(err):
				return fmt.Errorf("pipeline: read input: %w", err)
			}
			d.item++
			d.counters.IncRead()
			d.counters.IncDecodeError()
			log.Warn("skipping malformed input", "err", err)
			continue
		}
		d.item++
		d.counters.IncRead()

		if d.item < d.cfg.RecordMin {
			d.counters.IncSkipped()
			continue
		}

		if err := d.offer(ctx, d.norm.Apply(rec)); err != nil {
			return err
		}
	}
}

// await consults the governor until it allows progress. It reports true
// when the run should stop.
func (d *Driver) await(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return true
		}
		sig, err := d.gov.Check(ctx)
		if err != nil {
			logging.L().Debug("governor check failed; continuing", "err", err)
			return false
		}
		switch sig.Action {
		case governor.Stop:
			logging.L().Info("governor requested stop", "item", d.item)
			return true
		case governor.Pause:
			logging.L().Debug("governor pause", "duration", sig.Duration)
			t := time.NewTimer(sig.Duration)
			select {
			case <-ctx.Done():
				t.Stop()
				return true
			case <-t.C:
			}
		default:
			return false
		}
	}
}

func (d *Driver) offer(ctx context.Context, rec record.Record) error {
	b, err := rec.Marshal()
	if err != nil {
		d.counters.IncDropped()
		logging.L().Warn("dropping unserializable record", "item", d.item, "err", err)
		return nil
	}
	full, err := d.acc.Offer(b)
	if errors.Is(err, batch.ErrOversizedRecord) {
		d.counters.IncDropped()
		logging.L().Warn("dropping oversized record", "item", d.item, "err", err)
		return nil
	}
	if err != nil {
		return err
	}
	if err := d.send(ctx, full); err != nil {
		return err
	}
	if d.acc.Full() {
		return d.send(ctx, d.acc.Flush())
	}
	return nil
}

func (d *Driver) send(ctx context.Context, b *batch.Batch) error {
	if b == nil {
		return nil
	}
	if err := d.snk.Send(ctx, b.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkSend, err)
	}
	d.counters.AddMessage(b.Len(), b.Size())
	return nil
}

// finish sends the trailing batch. The send runs detached from ctx so a
// cancelled run still delivers what it already accepted.
func (d *Driver) finish(ctx context.Context, reason string) error {
	if err := d.send(context.WithoutCancel(ctx), d.acc.Flush()); err != nil {
		return err
	}
	s := d.counters.Snapshot()
	logging.L().Info("pipeline finished",
		"reason", reason,
		"records_read", s.Read,
		"records_sent", s.Sent,
		"records_dropped", s.Dropped,
		"records_skipped", s.Skipped,
		"decode_errors", s.DecodeErrors,
		"messages_sent", s.Messages,
		"bytes_sent", s.Bytes,
	)
	return nil
}
