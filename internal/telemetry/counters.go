package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters tracks pipeline progress. The driver is the only writer;
// reporters may read from other goroutines.
type Counters struct {
	start time.Time

	read         atomic.Int64
	sent         atomic.Int64
	dropped      atomic.Int64
	skipped      atomic.Int64
	decodeErrors atomic.Int64
	messages     atomic.Int64
	bytes        atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{start: time.Now()}
}

func (c *Counters) IncRead()        { c.read.Add(1) }
func (c *Counters) IncDropped()     { c.dropped.Add(1) }
func (c *Counters) IncSkipped()     { c.skipped.Add(1) }
func (c *Counters) IncDecodeError() { c.decodeErrors.Add(1) }

// AddMessage accounts for one message handed to the sink.
func (c *Counters) AddMessage(records, size int) {
	c.messages.Add(1)
	c.sent.Add(int64(records))
	c.bytes.Add(int64(size))
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Read         int64
	Sent         int64
	Dropped      int64
	Skipped      int64
	DecodeErrors int64
	Messages     int64
	Bytes        int64
	Start        time.Time
	Taken        time.Time
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Read:         c.read.Load(),
		Sent:         c.sent.Load(),
		Dropped:      c.dropped.Load(),
		Skipped:      c.skipped.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Messages:     c.messages.Load(),
		Bytes:        c.bytes.Load(),
		Start:        c.start,
		Taken:        time.Now(),
	}
}

func (s Snapshot) Uptime() time.Duration { return s.Taken.Sub(s.Start) }

// Rate is records sent per second since start.
func (s Snapshot) Rate() float64 {
	secs := s.Uptime().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Sent) / secs
}

// Sub returns the counter deltas between s and an earlier snapshot.
func (s Snapshot) Sub(prev Snapshot) Snapshot {
	return Snapshot{
		Read:         s.Read - prev.Read,
		Sent:         s.Sent - prev.Sent,
		Dropped:      s.Dropped - prev.Dropped,
		Skipped:      s.Skipped - prev.Skipped,
		DecodeErrors: s.DecodeErrors - prev.DecodeErrors,
		Messages:     s.Messages - prev.Messages,
		Bytes:        s.Bytes - prev.Bytes,
		Start:        prev.Taken,
		Taken:        s.Taken,
	}
}
