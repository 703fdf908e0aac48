package grpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ReconcilerService is the health service name reported for the reconciler.
const ReconcilerService = "pkbot.Reconciler"

const refreshInterval = 5 * time.Second

// HealthServer serves the standard gRPC health protocol for the bot process.
// Each registered service reports SERVING while its check passes; the process
// as a whole is SERVING while all of them do.
type HealthServer struct {
	address string
	checks  map[string]func() bool

	mu     sync.Mutex
	lis    net.Listener
	srv    *grpc.Server
	health *health.Server
	stop   chan struct{}
	done   chan struct{}
}

func NewHealthServer(address string) *HealthServer {
	return &HealthServer{address: address, checks: make(map[string]func() bool)}
}

// AddCheck reports service as SERVING while check returns true. Call before Start.
func (h *HealthServer) AddCheck(service string, check func() bool) {
	h.checks[service] = check
}

// Start listens on the configured address and begins reporting.
func (h *HealthServer) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.srv != nil {
		return errors.New("health server already started")
	}

	lis, err := net.Listen("tcp", h.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.address, err)
	}

	h.lis = lis
	h.health = health.NewServer()
	h.srv = grpc.NewServer()
	healthpb.RegisterHealthServer(h.srv, h.health)
	h.refresh(h.health)

	h.stop, h.done = make(chan struct{}), make(chan struct{})
	go h.watch(h.health, h.stop, h.done)

	go func(srv *grpc.Server, lis net.Listener) {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			slog.Error("health server stopped unexpectedly", "error", err)
		}
	}(h.srv, lis)

	slog.Info("gRPC health server listening", "address", lis.Addr().String())
	return nil
}

// Refresh re-evaluates every check now.
func (h *HealthServer) Refresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.health != nil {
		h.refresh(h.health)
	}
}

func (h *HealthServer) watch(hs *health.Server, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			h.refresh(hs)
		}
	}
}

func (h *HealthServer) refresh(hs *health.Server) {
	overall := healthpb.HealthCheckResponse_SERVING
	for service, check := range h.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if !check() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(service, status)
	}
	hs.SetServingStatus("", overall)
}

// Addr returns the bound address, or nil before Start.
func (h *HealthServer) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lis == nil {
		return nil
	}
	return h.lis.Addr()
}

// Close reports NOT_SERVING and stops the server.
func (h *HealthServer) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.srv == nil {
		return nil
	}

	close(h.stop)
	<-h.done

	h.health.Shutdown()
	h.srv.GracefulStop()
	h.srv, h.lis, h.health = nil, nil, nil

	slog.Info("gRPC health server stopped")
	return nil
}
