package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health polls a gRPC health endpoint. SERVING continues, NOT_SERVING
// pauses, any other status continues. A SERVING answer is reused for
// Poll before the endpoint is asked again.
type Health struct {
	client  healthpb.HealthClient
	service string
	poll    time.Duration
	timeout time.Duration
	conn    *grpc.ClientConn

	mu      sync.Mutex
	okUntil time.Time
	now     func() time.Time
}

func NewHealth(client healthpb.HealthClient, service string, poll time.Duration) *Health {
	return &Health{
		client:  client,
		service: service,
		poll:    poll,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

func (h *Health) Check(ctx context.Context) (Signal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.now().Before(h.okUntil) {
		return SignalContinue, nil
	}

	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	resp, err := h.client.Check(cctx, &healthpb.HealthCheckRequest{Service: h.service})
	if err != nil {
		return SignalContinue, fmt.Errorf("governor: health check: %w", err)
	}
	switch resp.GetStatus() {
	case healthpb.HealthCheckResponse_SERVING:
		h.okUntil = h.now().Add(h.poll)
		return SignalContinue, nil
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return PauseFor(h.poll), nil
	default:
		return SignalContinue, nil
	}
}

func (h *Health) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
