package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, ServiceName, status.Service)
}

func TestReadinessHandler(t *testing.T) {
	ok := func(context.Context) (bool, error) { return true, nil }
	down := func(context.Context) (bool, error) { return false, errors.New("microphone unavailable") }

	rec := httptest.NewRecorder()
	ReadinessHandler(map[string]HealthCheckFunc{"event_loop": ok})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ReadinessHandler(map[string]HealthCheckFunc{
		"event_loop":   ok,
		"voice_source": down,
	})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "unhealthy", status.Dependencies["voice_source"].Status)
	assert.Equal(t, "microphone unavailable", status.Dependencies["voice_source"].Message)
	assert.Equal(t, "healthy", status.Dependencies["event_loop"].Status)
}

func TestStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler(func(context.Context) (any, error) {
		return map[string]float64{"position": 0.5}, nil
	})(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"position":0.5}`, rec.Body.String())

	rec = httptest.NewRecorder()
	StatusHandler(func(context.Context) (any, error) {
		return nil, errors.New("event loop stopped")
	})(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGRPCHealth(t *testing.T) {
	g, err := NewGRPCHealth("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)
	go g.Serve()
	defer g.Stop()

	conn, err := grpc.NewClient(g.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	g.SetServing(true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestSessionMetrics(t *testing.T) {
	m := NewSessionMetrics("test-session")
	assert.Equal(t, "test-session", m.SessionID())

	m.RecordSessionStart()
	m.RecordCommand("toggle", "user")
	m.VoiceTransition(true)
	m.VoiceError("no-speech")
	m.RecordSessionEnd()
	m.RecordSessionEnd()
	assert.True(t, m.ended)
}
