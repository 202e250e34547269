package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/internal/client/api"
	"github.com/iudanet/credisync/internal/client/events"
	"github.com/iudanet/credisync/internal/client/storage/boltdb"
	"github.com/iudanet/credisync/internal/client/store"
	"github.com/iudanet/credisync/internal/conflict"
	"github.com/iudanet/credisync/internal/models"
)

var (
	t1 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	db         *boltdb.Storage
	store      *store.Store
	monitor    *Monitor
	registry   *Registry
	dispatcher *Dispatcher
}

func newTestEnv(t *testing.T, resolverOpts ...conflict.Option) *testEnv {
	t.Helper()

	db, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := discardLogger()
	st := store.New(db, events.NewNotifier(logger), logger)
	monitor := NewMonitor(true)
	registry := NewRegistry()

	return &testEnv{
		db:       db,
		store:    st,
		monitor:  monitor,
		registry: registry,
		dispatcher: NewDispatcher(db, st, registry, conflict.NewResolver(resolverOpts...), monitor, logger,
			WithMetadata(db)),
	}
}

// save записывает запись локально и ставит мутацию в очередь, как это делает слой данных
func (e *testEnv) save(t *testing.T, rec models.Record, op models.Operation) string {
	t.Helper()
	ctx := context.Background()

	rec.Sync().MarkPending()
	require.NoError(t, e.store.Put(ctx, rec))

	payload, err := models.EncodePayload(rec)
	require.NoError(t, err)

	id, err := e.db.Enqueue(ctx, models.Mutation{
		ScopeID:    rec.Scope(),
		EntityType: rec.EntityType(),
		Operation:  op,
		EntityID:   rec.RecordID(),
		Payload:    payload,
	})
	require.NoError(t, err)
	return id
}

func newClient(id, name string, at time.Time) *models.Client {
	c := &models.Client{
		Base:     models.Base{ID: id, OwnerScopeID: "scope"},
		Name:     name,
		Document: "1020304050",
	}
	c.Touch(at)
	return c
}

func newPayment(id string, amount int64, at time.Time) *models.Payment {
	p := &models.Payment{
		Base:          models.Base{ID: id, OwnerScopeID: "scope"},
		Amount:        decimal.NewFromInt(amount),
		CreditID:      "cr1",
		InstallmentID: "i1",
		ClientID:      "c1",
	}
	p.Touch(at)
	return p
}

func newCredit(id string, balance int64, at time.Time) *models.Credit {
	c := &models.Credit{
		Base:               models.Base{ID: id, OwnerScopeID: "scope"},
		ClientID:           "c1",
		ProductID:          "pr1",
		PrincipalAmount:    decimal.NewFromInt(1000),
		OutstandingBalance: decimal.NewFromInt(balance),
	}
	c.Touch(at)
	return c
}

// fakeRemote версионированный удаленный сервис в памяти, ключ - клиентский id
type fakeRemote struct {
	rows    map[string]fakeRow
	mu      stdsync.Mutex
	creates int
	updates int
	deletes int
}

type fakeRow struct {
	payload json.RawMessage
	version int64
}

var _ RemoteOps = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]fakeRow)}
}

func (f *fakeRemote) Create(_ context.Context, id string, payload json.RawMessage) (*api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++

	if row, ok := f.rows[id]; ok {
		if bytes.Equal(row.payload, payload) {
			return &api.Ack{ID: id, Version: row.version, Replayed: true}, nil
		}
		return nil, &api.ConflictError{EntityID: id, RemotePayload: row.payload, RemoteVersion: row.version}
	}
	f.rows[id] = fakeRow{payload: payload, version: 1}
	return &api.Ack{ID: id, Version: 1}, nil
}

func (f *fakeRemote) Update(_ context.Context, id string, payload json.RawMessage, baseVersion int64) (*api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++

	row, ok := f.rows[id]
	if ok && row.version != baseVersion {
		return nil, &api.ConflictError{EntityID: id, RemotePayload: row.payload, RemoteVersion: row.version}
	}
	row = fakeRow{payload: payload, version: row.version + 1}
	f.rows[id] = row
	return &api.Ack{ID: id, Version: row.version}, nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) (*api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.rows, id)
	return &api.Ack{ID: id}, nil
}

func (f *fakeRemote) row(id string) (fakeRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	return row, ok
}

// interleavedRecords выполняет hook один раз перед ближайшим атомарным обновлением записи:
// так пользовательское изменение попадает между отправкой и подтверждением
type interleavedRecords struct {
	*boltdb.Storage
	hook func()
}

func (r *interleavedRecords) UpdateRecord(ctx context.Context, t models.EntityType, id string, fn func(*models.StoredRecord) (*models.StoredRecord, error)) error {
	if hook := r.hook; hook != nil {
		r.hook = nil
		hook()
	}
	return r.Storage.UpdateRecord(ctx, t, id, fn)
}

// interleavedStore Local Store поверх тех же таблиц, что и env.store
func (e *testEnv) interleavedStore() (*store.Store, *interleavedRecords) {
	records := &interleavedRecords{Storage: e.db}
	logger := discardLogger()
	return store.New(records, events.NewNotifier(logger), logger), records
}
