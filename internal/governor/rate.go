package governor

import (
	"context"
	"sync"
	"time"
)

// bucket is a token bucket refilled by a background ticker.
type bucket struct {
	capacity int64
	refill   int64

	mu     sync.Mutex
	tokens int64
	closed bool
	stop   chan struct{}
}

func newBucket(capacity, refill int64, tick time.Duration) *bucket {
	b := &bucket{
		capacity: capacity,
		refill:   refill,
		tokens:   capacity,
		stop:     make(chan struct{}),
	}

	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-t.C:
				b.mu.Lock()
				b.tokens += b.refill
				if b.tokens > b.capacity {
					b.tokens = b.capacity
				}
				b.mu.Unlock()
			}
		}
	}()
	return b
}

func (b *bucket) tryAcquire(n int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

func (b *bucket) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.stop)
}

// Rate limits throughput to a number of records per second.
type Rate struct {
	b    *bucket
	tick time.Duration
}

// NewRate admits perSecond records per second with bursts up to burst.
// burst < 1 defaults to one second's worth of records.
func NewRate(perSecond float64, burst int) *Rate {
	tick, refill := rateTick(perSecond)
	capacity := int64(burst)
	if capacity < 1 {
		capacity = int64(perSecond)
		if capacity < 1 {
			capacity = 1
		}
	}
	return &Rate{b: newBucket(capacity, refill, tick), tick: tick}
}

// rateTick picks a refill cadence no finer than 10ms.
func rateTick(perSecond float64) (time.Duration, int64) {
	const minTick = 10 * time.Millisecond
	if perSecond <= 0 {
		perSecond = 1
	}
	tick := time.Duration(float64(time.Second) / perSecond)
	if tick >= minTick {
		return tick, 1
	}
	refill := int64(perSecond * minTick.Seconds())
	if refill < 1 {
		refill = 1
	}
	return minTick, refill
}

func (r *Rate) Check(context.Context) (Signal, error) {
	if r.b.tryAcquire(1) {
		return SignalContinue, nil
	}
	return PauseFor(r.tick), nil
}

func (r *Rate) Close() error {
	r.b.close()
	return nil
}
