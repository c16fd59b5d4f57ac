package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-roomrelease/pkg/mqtt"
)

type stubMQTT struct{ connected bool }

func (s *stubMQTT) Connect(ctx context.Context) error { return nil }
func (s *stubMQTT) Disconnect()                       {}
func (s *stubMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}
func (s *stubMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return nil
}
func (s *stubMQTT) IsConnected() bool { return s.connected }

type stubRedis struct{ pingErr error }

func (s *stubRedis) SetFields(ctx context.Context, key string, values map[string]interface{}) error {
	return nil
}
func (s *stubRedis) SetFieldTTL(ctx context.Context, key, field string, value interface{}, ttl time.Duration) error {
	return nil
}
func (s *stubRedis) Fields(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (s *stubRedis) PushCapped(ctx context.Context, key string, value interface{}, max int64) error {
	return nil
}
func (s *stubRedis) Newest(ctx context.Context, key string, n int64) ([]string, error) {
	return nil, nil
}
func (s *stubRedis) Ping(ctx context.Context) error { return s.pingErr }
func (s *stubRedis) Close() error                   { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandlerFunc(t *testing.T) {
	checker := NewChecker(nil, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	checker.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}

func TestDetailedHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		mqtt       *stubMQTT
		redis      *stubRedis
		wantStatus string
		wantCode   int
	}{
		{
			name:       "all connected",
			mqtt:       &stubMQTT{connected: true},
			redis:      &stubRedis{},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name:       "mqtt down",
			mqtt:       &stubMQTT{connected: false},
			redis:      &stubRedis{},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "redis ping fails",
			mqtt:       &stubMQTT{connected: true},
			redis:      &stubRedis{pingErr: errors.New("refused")},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(tt.mqtt, tt.redis, nil, testLogger())

			rec := httptest.NewRecorder()
			checker.DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.NotNil(t, resp.Services)
			assert.Empty(t, resp.Services.Postgres)
		})
	}
}
