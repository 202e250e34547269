package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/pkg/api"
)

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		handler    http.HandlerFunc
		name       string
		wantStatus int
		wantPanic  bool
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "panic with string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			},
			wantStatus: http.StatusInternalServerError,
			wantPanic:  true,
		},
		{
			name: "panic with error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(io.ErrUnexpectedEOF)
			},
			wantStatus: http.StatusInternalServerError,
			wantPanic:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf strings.Builder
			logger := slog.New(slog.NewTextHandler(&logBuf, nil))

			w := httptest.NewRecorder()
			RecoveryMiddleware(logger)(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/records/payment", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			if !tt.wantPanic {
				assert.Empty(t, logBuf.String())
				return
			}

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "Internal server error", resp.Error)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			logOutput := logBuf.String()
			assert.Contains(t, logOutput, "Panic recovered")
			assert.Contains(t, logOutput, "/api/v1/records/payment")
			assert.Contains(t, logOutput, "goroutine", "log should contain stack trace")
		})
	}
}

func TestRecoveryMiddleware_AbortHandlerPropagates(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRecoveryMiddleware_ChainWithLogging(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	// Цепочка: recovery -> logging -> handler
	handler := RecoveryMiddleware(logger)(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logBuf.String(), "Panic recovered")
}
