package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, m *HealthMonitor, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := m.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthMonitor_Probe(t *testing.T) {
	m := NewHealthMonitor(time.Second)

	var dbErr error
	m.Register("database", func(ctx context.Context) error { return dbErr })
	m.Register("payments", func(ctx context.Context) error { return nil })
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, status(t, m, "database"))

	m.Probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, m, "database"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, m, ""))

	dbErr = errors.New("connection refused")
	m.Probe(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, m, "database"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, m, "payments"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, m, ""))
}

func TestHealthMonitor_RunShutsDown(t *testing.T) {
	m := NewHealthMonitor(10 * time.Millisecond)
	m.Register("database", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return status(t, m, "") == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, m, "database"))
}
