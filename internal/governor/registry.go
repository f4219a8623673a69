package governor

import (
	"fmt"
	"io"
	"time"

	"streamproducer/internal/transport"
)

const (
	KindNone      = "none"
	KindRate      = "rate"
	KindPauseFile = "pausefile"
	KindGRPC      = "grpc"
)

type Config struct {
	Kind          string        `koanf:"kind"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	PauseFile     string        `koanf:"pause_file"`
	StopFile      string        `koanf:"stop_file"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	Target        string        `koanf:"target"`
	Service       string        `koanf:"service"`
}

// New builds the governor named by cfg.Kind. The returned closer releases
// any background resources and is never nil.
func New(cfg Config) (Governor, io.Closer, error) {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	switch cfg.Kind {
	case "", KindNone:
		return None{}, nopCloser{}, nil
	case KindRate:
		if cfg.RatePerSecond <= 0 {
			return nil, nil, fmt.Errorf("governor: rate_per_second must be > 0, got %v", cfg.RatePerSecond)
		}
		r := NewRate(cfg.RatePerSecond, cfg.Burst)
		return r, r, nil
	case KindPauseFile:
		if cfg.PauseFile == "" && cfg.StopFile == "" {
			return nil, nil, fmt.Errorf("governor: pausefile needs pause_file or stop_file")
		}
		return &PauseFile{PausePath: cfg.PauseFile, StopPath: cfg.StopFile, Poll: poll}, nopCloser{}, nil
	case KindGRPC:
		if cfg.Target == "" {
			return nil, nil, fmt.Errorf("governor: grpc needs target")
		}
		client, conn, err := transport.DialHealth(cfg.Target)
		if err != nil {
			return nil, nil, fmt.Errorf("governor: dial %s: %w", cfg.Target, err)
		}
		h := NewHealth(client, cfg.Service, poll)
		h.conn = conn
		return h, h, nil
	}
	return nil, nil, fmt.Errorf("governor: unknown kind %q", cfg.Kind)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
