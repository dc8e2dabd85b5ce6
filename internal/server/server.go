// Package server runs a service's HTTP API next to its gRPC health endpoint
// and stops both on shutdown.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Wuchinator/storefront-activity/internal/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	name   string
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func New(name string, httpPort string, handler http.Handler, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.LoggingInterceptor(logger),
		middleware.RecoveryInterceptor(logger),
	))

	// Checker for kuber
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Reflection для grpcurl и подобных инструментов
	reflection.Register(grpcServer)

	return &Server{
		name: name,
		http: &http.Server{
			Addr:              ":" + httpPort,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpc:   grpcServer,
		health: healthServer,
		logger: logger,
	}
}

// Run serves until ctx is cancelled or a listener fails, then shuts both
// servers down.
func (s *Server) Run(ctx context.Context, grpcListener net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting gRPC server", zap.String("addr", grpcListener.Addr().String()))
		s.health.SetServingStatus(s.name, grpc_health_v1.HealthCheckResponse_SERVING)
		return s.grpc.Serve(grpcListener)
	})

	g.Go(func() error {
		<-ctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

func (s *Server) shutdown() {
	s.logger.Info("Shutting down servers")
	s.health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP shutdown timed out", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped")
	case <-ctx.Done():
		s.logger.Warn("shutdown gRPC server timed out")
		s.grpc.Stop()
	}
}
