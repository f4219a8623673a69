package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reporter receives counter snapshots.
type Reporter interface {
	Report(Snapshot)
}

// LogReporter writes each snapshot as one structured log line, with
// deltas relative to the previous report.
type LogReporter struct {
	Logger *slog.Logger

	mu   sync.Mutex
	prev *Snapshot
}

func NewLogReporter(l *slog.Logger) *LogReporter {
	return &LogReporter{Logger: l}
}

func (r *LogReporter) Report(s Snapshot) {
	r.mu.Lock()
	prev := Snapshot{Start: s.Start, Taken: s.Start}
	if r.prev != nil {
		prev = *r.prev
	}
	r.prev = &s
	r.mu.Unlock()

	d := s.Sub(prev)
	r.Logger.Info("monitor",
		slog.Int64("records_read", s.Read),
		slog.Int64("records_sent", s.Sent),
		slog.Int64("records_dropped", s.Dropped),
		slog.Int64("records_skipped", s.Skipped),
		slog.Int64("decode_errors", s.DecodeErrors),
		slog.Int64("messages_sent", s.Messages),
		slog.Int64("bytes_sent", s.Bytes),
		slog.Int64("interval_records_sent", d.Sent),
		slog.Int64("interval_messages_sent", d.Messages),
		slog.Duration("uptime", s.Uptime().Truncate(time.Second)),
		slog.Float64("records_per_second", s.Rate()),
	)
}

// Monitor reports Counters on a fixed period until its context ends.
type Monitor struct {
	counters *Counters
	period   time.Duration
	reporter Reporter
}

func NewMonitor(c *Counters, period time.Duration, r Reporter) *Monitor {
	return &Monitor{counters: c, period: period, reporter: r}
}

// Run blocks until ctx is done. A non-positive period disables reporting.
func (m *Monitor) Run(ctx context.Context) error {
	if m.period <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(m.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.reporter.Report(m.counters.Snapshot())
		}
	}
}
