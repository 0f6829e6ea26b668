package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/timeutil"
)

// HealthService is the service name reported alongside the overall status.
const HealthService = "fieldpilot.Planner"

// ScanAger reports how old the latest scan is. pipeline.Inputs implements it.
type ScanAger interface {
	ScanAge() (time.Duration, bool)
}

// Health publishes planner liveness over the standard gRPC health protocol.
// The planner is SERVING while scans keep arriving within the stale timeout.
type Health struct {
	srv   *health.Server
	ages  ScanAger
	stale time.Duration
	clock timeutil.Clock

	mu      sync.Mutex
	serving bool
	known   bool
}

// NewHealth starts NOT_SERVING until the first fresh scan is seen.
func NewHealth(ages ScanAger, stale time.Duration, clock timeutil.Clock) *Health {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	h := &Health{srv: health.NewServer(), ages: ages, stale: stale, clock: clock}
	h.set(false)
	return h
}

// Server exposes the underlying gRPC health server.
func (h *Health) Server() *health.Server { return h.srv }

// Serving reports the last published status.
func (h *Health) Serving() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.serving
}

// Update re-evaluates scan freshness and publishes any change.
func (h *Health) Update() bool {
	age, ok := h.ages.ScanAge()
	serving := ok && age <= h.stale
	h.set(serving)
	return serving
}

func (h *Health) set(serving bool) {
	h.mu.Lock()
	changed := !h.known || h.serving != serving
	h.serving = serving
	h.known = true
	h.mu.Unlock()
	if !changed {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(HealthService, status)
	monitoring.Logf("planner health: %s", status)
}

// Run re-evaluates the status every interval until ctx is cancelled.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C():
			h.Update()
		}
	}
}

// ServeGRPC serves the health service on address until ctx is cancelled.
func (h *Health) ServeGRPC(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return h.serve(ctx, lis)
}

func (h *Health) serve(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h.srv)

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("gRPC health listening on %s", lis.Addr())
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("gRPC health server: %w", err)
	}
}
