package grpc

import (
	"context"
	"sync"
	"time"

	"carrental-backend/internal/logger"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Check probes one dependency. A nil error means it is serving.
type Check func(ctx context.Context) error

// HealthMonitor runs dependency checks on an interval and reports them through
// the standard grpc.health.v1 service. The overall status ("") is SERVING only
// while every registered check passes.
type HealthMonitor struct {
	server   *health.Server
	interval time.Duration

	mu     sync.Mutex
	checks map[string]Check
}

func NewHealthMonitor(interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthMonitor{
		server:   health.NewServer(),
		interval: interval,
		checks:   make(map[string]Check),
	}
}

// Server is registered on the gRPC server with healthpb.RegisterHealthServer.
func (m *HealthMonitor) Server() *health.Server {
	return m.server
}

func (m *HealthMonitor) Register(service string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[service] = check
	m.server.SetServingStatus(service, healthpb.HealthCheckResponse_UNKNOWN)
}

// Run probes until ctx is done, then marks everything NOT_SERVING so load
// balancers drain the instance during shutdown.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe runs every check once.
func (m *HealthMonitor) Probe(ctx context.Context) {
	m.mu.Lock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, m.interval)
		err := check(probeCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("Health check failed", "service", name, "error", err)
		}
		m.server.SetServingStatus(name, status)
	}
	m.server.SetServingStatus("", overall)
}
