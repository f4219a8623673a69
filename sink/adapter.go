package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrConnect is returned by Configure when the destination cannot be
	// reached. It is fatal at startup.
	ErrConnect = errors.New("sink: connect failed")
	// ErrSend is returned by Send when a message was not accepted.
	ErrSend = errors.New("sink: send failed")
)

// Adapter delivers opaque messages to one destination. It knows nothing
// about batching; each Send is one message on the wire.
type Adapter interface {
	Configure(ctx context.Context, cfg any) error // driver config struct ⇒ live connection
	Send(ctx context.Context, msg []byte) error
	Close() error // idempotent
}

// ConnectError wraps a driver error with ErrConnect.
func ConnectError(driver string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrConnect, driver, err)
}

// SendError wraps a driver error with ErrSend.
func SendError(driver string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSend, driver, err)
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

// Names lists registered sinks in sorted order.
func Names() []string {
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
