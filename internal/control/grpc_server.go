// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sharegate Contributors

// Package control provides the gRPC control plane: a grpc.health.v1 server
// backed by a readiness probe, and the client used by `sharegate status`.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultCheckInterval is how often the readiness probe runs.
const DefaultCheckInterval = 5 * time.Second

// CheckFunc reports nil while the process can serve requests.
type CheckFunc func(ctx context.Context) error

// GRPCServer serves grpc.health.v1 for the overall process ("") and for the
// named component.
type GRPCServer struct {
	component string
	check     CheckFunc
	interval  time.Duration
	logger    *slog.Logger

	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGRPCServer creates a new control server. A nil check always reports
// SERVING.
func NewGRPCServer(component string, check CheckFunc, logger *slog.Logger) (*GRPCServer, error) {
	if component == "" {
		return nil, oops.Code("CONTROL_INVALID_CONFIG").Errorf("component name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCServer{
		component: component,
		check:     check,
		interval:  DefaultCheckInterval,
		logger:    logger,
		health:    health.NewServer(),
	}, nil
}

// Start begins listening on addr. The returned channel receives the serve
// error (nil on graceful stop) exactly once.
func (s *GRPCServer) Start(addr string) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil, oops.Code("CONTROL_ALREADY_RUNNING").Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("CONTROL_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.probe(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		err := s.grpcServer.Serve(listener)
		if err != nil {
			s.logger.Error("control gRPC server error", "component", s.component, "error", err)
		}
		errCh <- err
	}()

	s.logger.Info("control server started", "component", s.component, "addr", listener.Addr().String())
	return errCh, nil
}

// Addr returns the listen address, or "" before Start.
func (s *GRPCServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING and gracefully stops the server.
func (s *GRPCServer) Stop(_ context.Context) error {
	s.mu.Lock()
	cancel, done, srv := s.cancel, s.done, s.grpcServer
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.health.Shutdown()
	srv.GracefulStop()
	return nil
}

func (s *GRPCServer) watch(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.check(checkCtx)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "readiness check failed", "component", s.component, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.component, status)
}
