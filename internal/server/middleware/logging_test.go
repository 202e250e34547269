package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/credisync/pkg/api"
)

func newBufferLogger(buf *strings.Builder) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		wantLevel string
		status    int
	}{
		{name: "created", method: http.MethodPost, path: "/api/v1/records/payment", status: http.StatusCreated, wantLevel: "INFO"},
		{name: "conflict is part of the protocol", method: http.MethodPut, path: "/api/v1/records/credit/cr1", status: http.StatusConflict, wantLevel: "INFO"},
		{name: "bad request", method: http.MethodPost, path: "/api/v1/records/payment", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "server error", method: http.MethodDelete, path: "/api/v1/records/client/c1", status: http.StatusInternalServerError, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf strings.Builder
			handler := LoggingMiddleware(newBufferLogger(&logBuf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(api.ScopeHeader, "scope-7")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)

			logOutput := logBuf.String()
			assert.Contains(t, logOutput, "level="+tt.wantLevel)
			assert.Contains(t, logOutput, "method="+tt.method)
			assert.Contains(t, logOutput, "path="+tt.path)
			assert.Contains(t, logOutput, "scope_id=scope-7")
			assert.Contains(t, logOutput, "bytes_written=11")
			assert.Contains(t, logOutput, "duration_ms=")
		})
	}
}

func TestLoggingMiddleware_DefaultStatus(t *testing.T) {
	var logBuf strings.Builder
	// Обработчик не вызывает WriteHeader явно
	handler := LoggingMiddleware(newBufferLogger(&logBuf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Hello, World!"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Contains(t, logBuf.String(), "status=200")
	assert.Contains(t, logBuf.String(), "bytes_written=13")
}

func TestLoggingWithSkip(t *testing.T) {
	var logBuf strings.Builder
	handler := LoggingWithSkip(newBufferLogger(&logBuf), []string{"/metrics", "/api/v1/health"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("skipped path is not logged", func(t *testing.T) {
		logBuf.Reset()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Empty(t, logBuf.String())
	})

	t.Run("other paths are logged", func(t *testing.T) {
		logBuf.Reset()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/records/client/c1", nil))
		assert.Contains(t, logBuf.String(), "HTTP request")
	})
}
