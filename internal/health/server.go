// Package health exposes grpc.health.v1 for the gateway, SERVING while the
// database answers pings.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chat-gateway/internal/observability"
)

const (
	defaultInterval = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	grpc     *grpc.Server
	health   *grpchealth.Server
	db       Pinger
	interval time.Duration
	logger   *zap.Logger
}

func New(db Pinger, logger *zap.Logger) *Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		grpc:     s,
		health:   hs,
		db:       db,
		interval: defaultInterval,
		logger:   logger.With(zap.String("component", "health")),
	}
}

// Serve listens on addr until ctx ends, then stops gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.logger.Info("grpc health listening", zap.String("addr", addr))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc health serve: %w", err)
	}
	return nil
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Server) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.db.PingContext(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("database ping failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}
