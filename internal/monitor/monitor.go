// Package monitor exposes session state through the standard gRPC health
// service on a unix socket, and watches it from other processes.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rbright/spymic/internal/fsm"
	"github.com/rbright/spymic/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names. The empty name reports the owner process itself.
const (
	ServiceCapture    = "spymic.capture"
	ServicePlayback   = "spymic.playback"
	ServicePermission = "spymic.permission"
)

// Services lists every session-derived service in display order.
var Services = []string{ServiceCapture, ServicePlayback, ServicePermission}

// Server publishes snapshots as health statuses.
type Server struct {
	logger *slog.Logger
	health *health.Server
	grpc   *grpc.Server

	mu   sync.Mutex
	last uint64
	seen bool
}

// NewServer builds a health server reporting the idle session.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{logger: logger, health: hs, grpc: gs}
	s.apply(session.Snapshot{State: fsm.StateIdle})
	return s
}

// Update publishes snap unless a newer revision was already published.
func (s *Server) Update(snap session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen && snap.Revision < s.last {
		return
	}
	s.seen = true
	s.last = snap.Revision
	s.apply(snap)
}

func (s *Server) apply(snap session.Snapshot) {
	for service, status := range Statuses(snap) {
		s.health.SetServingStatus(service, status)
	}
	s.logger.Debug("health updated", "state", snap.State, "revision", snap.Revision)
}

// Statuses maps a snapshot onto each health service.
func Statuses(snap session.Snapshot) map[string]healthpb.HealthCheckResponse_ServingStatus {
	serving := func(ok bool) healthpb.HealthCheckResponse_ServingStatus {
		if ok {
			return healthpb.HealthCheckResponse_SERVING
		}
		return healthpb.HealthCheckResponse_NOT_SERVING
	}

	return map[string]healthpb.HealthCheckResponse_ServingStatus{
		"":                serving(true),
		ServiceCapture:    serving(snap.State == fsm.StateGranted),
		ServicePlayback:   serving(snap.EffectiveGain() > 0),
		ServicePermission: serving(snap.State != fsm.StateDenied),
	}
}

// Serve runs the gRPC server until ctx ends. Watchers receive NOT_SERVING
// for every service before the server stops.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.Stop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Listen binds the health socket at path, replacing a stale socket file.
// Callers must already own the session socket.
func Listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale health socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on health socket: %w", err)
	}
	return listener, nil
}
