// Package governor decides, before each record, whether the pipeline may
// continue, should pause for a while, or must stop.
package governor

import (
	"context"
	"fmt"
	"time"
)

type Action int

const (
	Continue Action = iota
	Pause
	Stop
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Signal is the answer to one Check. Duration is only meaningful for Pause.
type Signal struct {
	Action   Action
	Duration time.Duration
}

var (
	SignalContinue = Signal{Action: Continue}
	SignalStop     = Signal{Action: Stop}
)

func PauseFor(d time.Duration) Signal { return Signal{Action: Pause, Duration: d} }

// Governor is consulted once per record. Errors are treated as Continue by
// the caller.
type Governor interface {
	Check(ctx context.Context) (Signal, error)
}

// None never throttles.
type None struct{}

func (None) Check(context.Context) (Signal, error) { return SignalContinue, nil }

// Func adapts a plain function to Governor.
type Func func(ctx context.Context) (Signal, error)

func (f Func) Check(ctx context.Context) (Signal, error) { return f(ctx) }
