package transport

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DialHealth opens a plaintext connection to target and returns a health
// client on it. The caller owns conn.
func DialHealth(target string, opts ...grpc.DialOption) (healthpb.HealthClient, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, nil, err
	}
	return healthpb.NewHealthClient(cc), cc, nil
}
