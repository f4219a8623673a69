package governor

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"streamproducer/internal/transport"
)

func TestNone_AlwaysContinues(t *testing.T) {
	s, err := None{}.Check(context.Background())
	if err != nil || s.Action != Continue {
		t.Fatalf("None.Check = (%v, %v)", s, err)
	}
}

func TestRate_PausesWhenBucketEmpty(t *testing.T) {
	r := NewRate(1, 2)
	defer r.Close()

	for i := 0; i < 2; i++ {
		s, _ := r.Check(context.Background())
		if s.Action != Continue {
			t.Fatalf("check %d: got %v, want continue", i, s.Action)
		}
	}
	s, _ := r.Check(context.Background())
	if s.Action != Pause || s.Duration <= 0 {
		t.Fatalf("expected pause once burst is spent, got %+v", s)
	}
}

func TestRate_Refills(t *testing.T) {
	r := NewRate(1000, 1)
	defer r.Close()

	if s, _ := r.Check(context.Background()); s.Action != Continue {
		t.Fatalf("first check: %v", s.Action)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := r.Check(context.Background()); s.Action == Continue {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("bucket never refilled")
}

func TestRateTick(t *testing.T) {
	tests := []struct {
		perSecond  float64
		wantTick   time.Duration
		wantRefill int64
	}{
		{1, time.Second, 1},
		{10, 100 * time.Millisecond, 1},
		{100, 10 * time.Millisecond, 1},
		{10_000, 10 * time.Millisecond, 100},
		{0, time.Second, 1},
	}
	for _, tt := range tests {
		tick, refill := rateTick(tt.perSecond)
		if tick != tt.wantTick || refill != tt.wantRefill {
			t.Fatalf("rateTick(%v) = (%v, %d), want (%v, %d)", tt.perSecond, tick, refill, tt.wantTick, tt.wantRefill)
		}
	}
}

func TestPauseFile(t *testing.T) {
	dir := t.TempDir()
	pause := filepath.Join(dir, "pause")
	stop := filepath.Join(dir, "stop")
	g := &PauseFile{PausePath: pause, StopPath: stop, Poll: 50 * time.Millisecond}

	check := func() Signal {
		t.Helper()
		s, err := g.Check(context.Background())
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return s
	}

	if s := check(); s.Action != Continue {
		t.Fatalf("no files: got %v", s.Action)
	}
	if err := os.WriteFile(pause, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if s := check(); s.Action != Pause || s.Duration != 50*time.Millisecond {
		t.Fatalf("pause file: got %+v", s)
	}
	if err := os.WriteFile(stop, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if s := check(); s.Action != Stop {
		t.Fatalf("stop file wins over pause: got %v", s.Action)
	}
}

type stubHealth struct {
	healthpb.HealthClient
	status healthpb.HealthCheckResponse_ServingStatus
	err    error
	calls  int
}

func (s *stubHealth) Check(context.Context, *healthpb.HealthCheckRequest, ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &healthpb.HealthCheckResponse{Status: s.status}, nil
}

func TestHealth_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status healthpb.HealthCheckResponse_ServingStatus
		err    error
		want   Action
	}{
		{"serving", healthpb.HealthCheckResponse_SERVING, nil, Continue},
		{"not serving", healthpb.HealthCheckResponse_NOT_SERVING, nil, Pause},
		{"unknown", healthpb.HealthCheckResponse_UNKNOWN, nil, Continue},
		{"error", 0, errors.New("unavailable"), Continue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth(&stubHealth{status: tt.status, err: tt.err}, "", time.Second)
			s, err := h.Check(context.Background())
			if (err != nil) != (tt.err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if s.Action != tt.want {
				t.Fatalf("action = %v, want %v", s.Action, tt.want)
			}
		})
	}
}

func TestHealth_CachesServing(t *testing.T) {
	stub := &stubHealth{status: healthpb.HealthCheckResponse_SERVING}
	h := NewHealth(stub, "", time.Minute)
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if _, err := h.Check(context.Background()); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected a single RPC within the poll window, got %d", stub.calls)
	}
	now = now.Add(2 * time.Minute)
	_, _ = h.Check(context.Background())
	if stub.calls != 2 {
		t.Fatalf("expected a refresh after the poll window, got %d calls", stub.calls)
	}
}

func TestHealth_AgainstRealServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	client, conn, err := transport.DialHealth("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("DialHealth: %v", err)
	}
	defer conn.Close()

	hs.SetServingStatus("loader", healthpb.HealthCheckResponse_NOT_SERVING)
	h := NewHealth(client, "loader", 10*time.Millisecond)
	s, err := h.Check(context.Background())
	if err != nil || s.Action != Pause {
		t.Fatalf("NOT_SERVING: got (%+v, %v)", s, err)
	}

	hs.SetServingStatus("loader", healthpb.HealthCheckResponse_SERVING)
	s, err = h.Check(context.Background())
	if err != nil || s.Action != Continue {
		t.Fatalf("SERVING: got (%+v, %v)", s, err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", Config{}, false},
		{"none", Config{Kind: KindNone}, false},
		{"rate", Config{Kind: KindRate, RatePerSecond: 50}, false},
		{"rate without rate", Config{Kind: KindRate}, true},
		{"pausefile", Config{Kind: KindPauseFile, PauseFile: "/tmp/p"}, false},
		{"pausefile without paths", Config{Kind: KindPauseFile}, true},
		{"grpc without target", Config{Kind: KindGRPC}, true},
		{"grpc", Config{Kind: KindGRPC, Target: "localhost:1"}, false},
		{"unknown", Config{Kind: "bogus"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, closer, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if g == nil || closer == nil {
				t.Fatal("nil governor or closer")
			}
			_ = closer.Close()
		})
	}
}
