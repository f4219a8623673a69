package transport

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported by the producer.
const ServiceName = "stream-producer"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

func StartServer(port int) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	return NewServer(lis), nil
}

// NewServer wraps an existing listener. Health starts as NOT_SERVING.
func NewServer(lis net.Listener) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the named service status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Addr() net.Addr { return s.lis.Addr() }

func (s *Server) Serve() error {
	if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
