package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/internal/client/events"
	"github.com/iudanet/credisync/internal/client/storage/boltdb"
	"github.com/iudanet/credisync/internal/client/store"
	"github.com/iudanet/credisync/internal/models"
)

type fixture struct {
	db      *boltdb.Storage
	store   *store.Store
	events  []events.Event
	service *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "backup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := events.NewNotifier(logger)
	f := &fixture{db: db}
	notifier.SubscribeAll(func(e events.Event) { f.events = append(f.events, e) })

	f.store = store.New(db, notifier, logger)
	f.service = NewService(db, f.store, logger, opts...)
	return f
}

func (f *fixture) addClient(t *testing.T, id string) {
	t.Helper()
	c := &models.Client{Base: models.Base{ID: id, OwnerScopeID: "scope"}, Name: "Client " + id, Document: "12345"}
	c.Touch(time.Now())
	c.Sync().MarkPending()
	require.NoError(t, f.store.Put(context.Background(), c))
	payload, err := models.EncodePayload(c)
	require.NoError(t, err)
	_, err = f.db.Enqueue(context.Background(), models.Mutation{
		ScopeID: "scope", EntityType: models.EntityClient, Operation: models.OpCreate, EntityID: id, Payload: payload,
	})
	require.NoError(t, err)
}

func TestService_ExportRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	src.addClient(t, "c1")
	src.addClient(t, "c2")

	snap, err := src.service.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotVersion, snap.Version)
	assert.Len(t, snap.Data[string(models.EntityClient)], 2)
	assert.Len(t, snap.Data[models.SnapshotOutboxKey], 2)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))
	decoded, err := Decode(&buf)
	require.NoError(t, err)

	// Целевая база содержит данные, которых нет в снимке
	dst := newFixture(t)
	dst.addClient(t, "other")
	dst.events = nil

	counts, err := dst.service.Restore(ctx, decoded, true)
	require.NoError(t, err)
	assert.Equal(t, decoded.Counts(), counts)

	tableCounts, err := dst.store.TableCounts(ctx)
	require.NoError(t, err)
	for table, want := range decoded.Counts() {
		if table == models.SnapshotOutboxKey {
			continue
		}
		assert.Equal(t, want, tableCounts[models.EntityType(table)], table)
	}

	_, err = dst.store.Get(ctx, models.EntityClient, "other")
	assert.Error(t, err)

	entries, err := dst.db.ListEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Индекс outbox восстановлен: повторное изменение сливается с записью из снимка
	unresolved, err := dst.db.FindUnresolved(ctx, models.EntityClient, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.OpCreate, unresolved.Operation)

	require.Len(t, dst.events, len(models.EntityTypes()))
	for _, e := range dst.events {
		assert.Equal(t, events.Restored, e.Kind)
	}
}

func TestService_Restore_Guards(t *testing.T) {
	tests := []struct {
		name      string
		snap      *models.Snapshot
		confirmed bool
		wantErr   error
	}{
		{
			name:    "not confirmed",
			snap:    &models.Snapshot{Version: models.SnapshotVersion, Data: map[string][]json.RawMessage{}},
			wantErr: ErrRestoreNotConfirmed,
		},
		{
			name:      "unsupported version",
			snap:      &models.Snapshot{Version: "0.1", Data: map[string][]json.RawMessage{}},
			confirmed: true,
			wantErr:   ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.addClient(t, "c1")

			_, err := f.service.Restore(ctx, tt.snap, tt.confirmed)
			require.ErrorIs(t, err, tt.wantErr)

			n, err := f.store.Count(ctx, models.EntityClient)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestService_Restore_InvalidSnapshotLeavesDataIntact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClient(t, "c1")

	snap := &models.Snapshot{
		Version: models.SnapshotVersion,
		Data: map[string][]json.RawMessage{
			string(models.EntityClient): {json.RawMessage(`{"data":{"id":"c9"},"meta":{"pending_sync":false}}`)},
			"unknown_table":             {},
		},
	}

	_, err := f.service.Restore(ctx, snap, true)
	require.Error(t, err)

	n, err := f.store.Count(ctx, models.EntityClient)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecode_RejectsMissingData(t *testing.T) {
	_, err := Decode(bytes.NewBufferString(`{"version":"1.0","timestamp":"2024-06-01T09:00:00Z"}`))
	assert.Error(t, err)

	_, err = Decode(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}

func TestRotator_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	f := newFixture(t, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	f.addClient(t, "c1")

	dir := filepath.Join(t.TempDir(), "backups")
	r := NewRotator(f.service, dir, 3, slog.New(slog.NewTextHandler(io.Discard, nil)))

	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	var written []string
	for range 5 {
		path, err := r.Backup(ctx)
		require.NoError(t, err)
		written = append(written, path)
	}

	list, err = r.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{written[4], written[3], written[2]}, list)

	for _, old := range written[:2] {
		_, err := os.Stat(old)
		assert.True(t, os.IsNotExist(err))
	}

	file, err := os.Open(list[0])
	require.NoError(t, err)
	defer file.Close()
	snap, err := Decode(file)
	require.NoError(t, err)
	assert.Len(t, snap.Data[string(models.EntityClient)], 1)

	// Временные файлы не остаются в каталоге
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
