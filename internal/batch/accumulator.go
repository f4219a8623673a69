// Package batch packs serialized records into messages bounded by a byte
// size and a record count.
package batch

import (
	"errors"
	"fmt"
)

// ErrOversizedRecord is returned when a single record cannot fit into any
// message. The record is dropped.
var ErrOversizedRecord = errors.New("batch: record exceeds max message size")

// OversizedError carries the numbers behind ErrOversizedRecord.
type OversizedError struct {
	Size  int
	Limit int
}

func (e *OversizedError) Error() string {
	return fmt.Sprintf("batch: record of %d bytes exceeds max message size %d", e.Size, e.Limit)
}

func (e *OversizedError) Unwrap() error { return ErrOversizedRecord }

// Batch is a group of records flushed as one message.
type Batch struct {
	records [][]byte
	array   bool
	size    int
}

// Len is the number of records in the batch.
func (b *Batch) Len() int { return len(b.records) }

// Size is the length in bytes of Bytes().
func (b *Batch) Size() int { return b.size }

// Bytes renders the message: the record itself in single mode, a JSON array
// otherwise.
func (b *Batch) Bytes() []byte {
	if !b.array {
		if len(b.records) == 0 {
			return nil
		}
		return b.records[0]
	}
	out := make([]byte, 0, b.size)
	out = append(out, '[')
	for i, r := range b.records {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, r...)
	}
	return append(out, ']')
}

// Accumulator is not safe for concurrent use; the pipeline driver owns it.
type Accumulator struct {
	maxBytes   int
	maxRecords int
	array      bool

	cur *Batch
}

// New builds an accumulator. maxRecords == 1 sends every record as its own
// JSON object; anything larger packs records into JSON arrays.
func New(maxBytes, maxRecords int) *Accumulator {
	if maxRecords < 1 {
		maxRecords = 1
	}
	a := &Accumulator{
		maxBytes:   maxBytes,
		maxRecords: maxRecords,
		array:      maxRecords > 1,
	}
	a.reset()
	return a
}

// MaxRecordSize is the largest serialized record that can be sent.
func (a *Accumulator) MaxRecordSize() int {
	if a.array {
		return a.maxBytes - 2
	}
	return a.maxBytes
}

// Offer adds rec to the current batch. When rec does not fit, the current
// batch is returned for sending and rec starts the next one.
func (a *Accumulator) Offer(rec []byte) (*Batch, error) {
	if len(rec) > a.MaxRecordSize() {
		return nil, &OversizedError{Size: len(rec), Limit: a.maxBytes}
	}

	var flushed *Batch
	if a.cur.Len() > 0 && !a.fits(rec) {
		flushed = a.cur
		a.reset()
	}
	a.append(rec)
	return flushed, nil
}

// Flush hands over the pending batch, or nil if it is empty.
func (a *Accumulator) Flush() *Batch {
	if a.cur.Len() == 0 {
		return nil
	}
	out := a.cur
	a.reset()
	return out
}

// Pending is the number of records waiting in the current batch.
func (a *Accumulator) Pending() int { return a.cur.Len() }

// Full reports whether the pending batch has reached the record limit, so
// no further Offer could join it.
func (a *Accumulator) Full() bool { return a.cur.Len() >= a.maxRecords }

func (a *Accumulator) fits(rec []byte) bool {
	if a.cur.Len()+1 > a.maxRecords {
		return false
	}
	return a.cur.size+a.cost(rec) <= a.maxBytes
}

// cost is what appending rec adds to the batch size: the record plus its
// separating comma once the array is non-empty.
func (a *Accumulator) cost(rec []byte) int {
	if a.array && a.cur.Len() > 0 {
		return len(rec) + 1
	}
	return len(rec)
}

func (a *Accumulator) append(rec []byte) {
	a.cur.size += a.cost(rec)
	a.cur.records = append(a.cur.records, rec)
}

func (a *Accumulator) reset() {
	a.cur = &Batch{array: a.array}
	if a.array {
		a.cur.size = 2 // [ and ]
	}
}
