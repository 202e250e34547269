package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/credisync/internal/client/api"
	"github.com/iudanet/credisync/internal/models"
	"github.com/iudanet/credisync/internal/server/metrics"
	"github.com/iudanet/credisync/internal/server/storage"
	"github.com/iudanet/credisync/internal/server/storage/sqlite"
	"github.com/iudanet/credisync/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

type testServer struct {
	router  http.Handler
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := setupTestLogger()
	m := metrics.New()
	return &testServer{
		router:  NewRouter(NewRecordsHandler(logger, db, m), NewHealthHandler(logger, db), m.Handler()),
		metrics: m,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doScoped(t, "scope-1", method, path, body)
}

func (s *testServer) doScoped(t *testing.T, scope, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if scope != "" {
		req.Header.Set(api.ScopeHeader, scope)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

const paymentPath = "/api/v1/records/payment"

func createPayment(t *testing.T, s *testServer, id, payload string) api.RecordResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, paymentPath, api.RecordRequest{ID: id, Payload: json.RawMessage(payload)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[api.RecordResponse](t, w)
}

func TestRecordsHandler_Create(t *testing.T) {
	s := newTestServer(t)

	resp := createPayment(t, s, "p1", `{"id":"p1","amount":"5000"}`)
	assert.Equal(t, "p1", resp.ID)
	assert.Equal(t, int64(1), resp.Version)
	assert.False(t, resp.Replayed)

	t.Run("replay with the same payload", func(t *testing.T) {
		// Пробелы не влияют на отпечаток
		w := s.do(t, http.MethodPost, paymentPath, `{"id":"p1","payload":{ "id": "p1", "amount": "5000" }}`)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[api.RecordResponse](t, w)
		assert.True(t, resp.Replayed)
		assert.Equal(t, int64(1), resp.Version)
	})

	t.Run("different payload under the same id", func(t *testing.T) {
		w := s.do(t, http.MethodPost, paymentPath, api.RecordRequest{ID: "p1", Payload: json.RawMessage(`{"id":"p1","amount":"4000"}`)})
		require.Equal(t, http.StatusConflict, w.Code)

		conflict := decode[api.ConflictResponse](t, w)
		assert.Equal(t, int64(1), conflict.Current.Version)
		assert.Equal(t, "payment", conflict.Current.EntityType)
		assert.JSONEq(t, `{"id":"p1","amount":"5000"}`, string(conflict.Current.Payload))
	})

	t.Run("same id in another scope", func(t *testing.T) {
		w := s.doScoped(t, "scope-2", http.MethodPost, paymentPath, api.RecordRequest{ID: "p1", Payload: json.RawMessage(`{"id":"p1"}`)})
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestRecordsHandler_Update(t *testing.T) {
	s := newTestServer(t)
	createPayment(t, s, "p1", `{"id":"p1","amount":"5000"}`)
	path := paymentPath + "/p1"

	w := s.do(t, http.MethodPut, path, api.RecordRequest{Payload: json.RawMessage(`{"id":"p1","amount":"5500"}`), BaseVersion: 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[api.RecordResponse](t, w).Version)

	tests := []struct {
		name        string
		payload     string
		base        int64
		wantCode    int
		wantVersion int64
		replayed    bool
	}{
		{name: "stale base version", payload: `{"id":"p1","amount":"6000"}`, base: 1, wantCode: http.StatusConflict, wantVersion: 2},
		{name: "retry of the applied update", payload: `{"id":"p1","amount":"5500"}`, base: 1, wantCode: http.StatusOK, wantVersion: 2, replayed: true},
		{name: "current base version", payload: `{"id":"p1","amount":"6000"}`, base: 2, wantCode: http.StatusOK, wantVersion: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPut, path, api.RecordRequest{Payload: json.RawMessage(tt.payload), BaseVersion: tt.base})
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			if tt.wantCode == http.StatusConflict {
				conflict := decode[api.ConflictResponse](t, w)
				assert.Equal(t, tt.wantVersion, conflict.Current.Version)
				assert.False(t, conflict.Current.Deleted)
				return
			}
			resp := decode[api.RecordResponse](t, w)
			assert.Equal(t, tt.wantVersion, resp.Version)
			assert.Equal(t, tt.replayed, resp.Replayed)
		})
	}

	t.Run("missing record is created", func(t *testing.T) {
		w := s.do(t, http.MethodPut, paymentPath+"/p9", api.RecordRequest{Payload: json.RawMessage(`{"id":"p9"}`), BaseVersion: 4})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(1), decode[api.RecordResponse](t, w).Version)
	})
}

func TestRecordsHandler_Delete(t *testing.T) {
	s := newTestServer(t)
	createPayment(t, s, "p1", `{"id":"p1","amount":"5000"}`)
	path := paymentPath + "/p1"

	w := s.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[api.RecordResponse](t, w)
	assert.Equal(t, int64(2), resp.Version)
	assert.False(t, resp.Replayed)

	w = s.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[api.RecordResponse](t, w).Replayed)

	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode[api.RecordEnvelope](t, w)
	assert.True(t, env.Deleted)
	assert.Empty(t, env.Payload)
	assert.Equal(t, int64(2), env.Version)

	t.Run("update of a deleted record conflicts", func(t *testing.T) {
		w := s.do(t, http.MethodPut, path, api.RecordRequest{Payload: json.RawMessage(`{"id":"p1"}`), BaseVersion: 1})
		require.Equal(t, http.StatusConflict, w.Code)
		assert.True(t, decode[api.ConflictResponse](t, w).Current.Deleted)
	})

	t.Run("create resurrects a deleted record", func(t *testing.T) {
		w := s.do(t, http.MethodPost, paymentPath, api.RecordRequest{ID: "p1", Payload: json.RawMessage(`{"id":"p1","amount":"1"}`)})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, int64(3), decode[api.RecordResponse](t, w).Version)

		w = s.do(t, http.MethodGet, path, nil)
		env := decode[api.RecordEnvelope](t, w)
		assert.False(t, env.Deleted)
		assert.JSONEq(t, `{"id":"p1","amount":"1"}`, string(env.Payload))
	})

	t.Run("missing record", func(t *testing.T) {
		w := s.do(t, http.MethodDelete, paymentPath+"/never", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[api.RecordResponse](t, w).Replayed)
	})
}

func TestRecordsHandler_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		body     any
		name     string
		scope    string
		method   string
		path     string
		wantCode int
	}{
		{name: "missing scope", method: http.MethodGet, path: paymentPath + "/p1", wantCode: http.StatusBadRequest},
		{name: "unknown entity type", scope: "s", method: http.MethodGet, path: "/api/v1/records/car/1", wantCode: http.StatusNotFound},
		{name: "broken body", scope: "s", method: http.MethodPost, path: paymentPath, body: "{", wantCode: http.StatusBadRequest},
		{name: "missing id", scope: "s", method: http.MethodPost, path: paymentPath, body: api.RecordRequest{Payload: json.RawMessage(`{}`)}, wantCode: http.StatusBadRequest},
		{name: "missing payload", scope: "s", method: http.MethodPost, path: paymentPath, body: `{"id":"p1"}`, wantCode: http.StatusBadRequest},
		{name: "payload is not an object", scope: "s", method: http.MethodPut, path: paymentPath + "/p1", body: `{"payload":[1,2]}`, wantCode: http.StatusBadRequest},
		{name: "record not found", scope: "s", method: http.MethodGet, path: paymentPath + "/p1", wantCode: http.StatusNotFound},
		{name: "method not allowed", scope: "s", method: http.MethodPatch, path: paymentPath + "/p1", wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.doScoped(t, tt.scope, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestRecordsHandler_Metrics(t *testing.T) {
	s := newTestServer(t)
	createPayment(t, s, "p1", `{"id":"p1","amount":"5000"}`)
	s.do(t, http.MethodPost, paymentPath, api.RecordRequest{ID: "p1", Payload: json.RawMessage(`{"id":"p1","amount":"1"}`)})

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `credisync_mutations_total{entity="payment",operation="CREATE",outcome="created"} 1`)
	assert.Contains(t, body, `credisync_conflicts_total{entity="payment",operation="CREATE"} 1`)
}

// failingStorage отвечает ошибкой на любой вызов
type failingStorage struct{ err error }

func (f failingStorage) GetRecord(context.Context, storage.RecordKey) (*storage.Record, error) {
	return nil, f.err
}

func (f failingStorage) InsertRecord(context.Context, *storage.Record) error { return f.err }

func (f failingStorage) ReplaceRecord(context.Context, *storage.Record, int64) error { return f.err }

func TestRecordsHandler_StorageError(t *testing.T) {
	handler := NewRecordsHandler(setupTestLogger(), failingStorage{err: errors.New("database is locked")}, nil)
	router := NewRouter(handler, NewHealthHandler(setupTestLogger(), nil), nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, paymentPath+"/p1", strings.NewReader(`{"payload":{"id":"p1"}}`))
			req.Header.Set(api.ScopeHeader, "scope-1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "Internal server error", decode[api.ErrorResponse](t, w).Error)
		})
	}
}

// Клиентский шлюз и сервер договариваются о формате ошибок
func TestRecordsHandler_WithClientGateway(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx := context.Background()
	gateway := clientapi.NewClient(srv.URL, "scope-1").Entity(models.EntityCredit)

	ack, err := gateway.Create(ctx, "cr1", json.RawMessage(`{"id":"cr1","outstandingBalance":"100"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ack.Version)

	ack, err = gateway.Create(ctx, "cr1", json.RawMessage(`{"id":"cr1","outstandingBalance":"100"}`))
	require.NoError(t, err)
	assert.True(t, ack.Replayed)

	ack, err = gateway.Update(ctx, "cr1", json.RawMessage(`{"id":"cr1","outstandingBalance":"80"}`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ack.Version)

	_, err = gateway.Update(ctx, "cr1", json.RawMessage(`{"id":"cr1","outstandingBalance":"90"}`), 1)
	var conflict *clientapi.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.RemoteVersion)
	assert.JSONEq(t, `{"id":"cr1","outstandingBalance":"80"}`, string(conflict.RemotePayload))

	_, err = gateway.Delete(ctx, "cr1")
	require.NoError(t, err)

	env, err := clientapi.NewClient(srv.URL, "scope-1").Fetch(ctx, models.EntityCredit, "cr1")
	require.NoError(t, err)
	assert.True(t, env.Deleted)

	require.NoError(t, clientapi.NewClient(srv.URL, "scope-1").Health(ctx))
}
