package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/pkg/api"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		db         Pinger
		name       string
		wantStatus string
		wantCode   int
	}{
		{name: "no database check", wantCode: http.StatusOK, wantStatus: "ok"},
		{
			name:       "database reachable",
			db:         pingerFunc(func(context.Context) error { return nil }),
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "database down",
			db:         pingerFunc(func(context.Context) error { return errors.New("disk I/O error") }),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(setupTestLogger(), tt.db)

			w := httptest.NewRecorder()
			handler.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp api.HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.NotZero(t, resp.Time)
		})
	}
}
