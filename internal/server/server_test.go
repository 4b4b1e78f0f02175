package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	healthy := HealthCheckFunc(func(ctx context.Context) error { return nil })
	down := HealthCheckFunc(func(ctx context.Context) error { return errors.New("dial tcp: connection refused") })

	tests := []struct {
		name     string
		checks   map[string]HealthChecker
		wantCode int
		want     map[string]string
	}{
		{
			name:     "all dependencies reachable",
			checks:   map[string]HealthChecker{"database": healthy, "redis": healthy},
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "healthy", "database": "connected", "redis": "connected"},
		},
		{
			name:     "redis down",
			checks:   map[string]HealthChecker{"database": healthy, "redis": down},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"status": "unhealthy", "error": "redis unreachable"},
		},
		{
			name:     "no dependencies",
			wantCode: http.StatusOK,
			want:     map[string]string{"status": "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", "release", "reprocessor", tt.checks)

			resp := httptest.NewRecorder()
			s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.wantCode, resp.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}
