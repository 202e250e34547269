package boltdb

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

func TestExportTables(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.PutRecord(ctx, models.EntityClient, "c1", storedRecord("c1")))
	require.NoError(t, store.PutRecord(ctx, models.EntityClient, "c2", storedRecord("c2")))
	_, err := store.Enqueue(ctx, mutation(models.OpCreate, "c1", `{"id":"c1"}`))
	require.NoError(t, err)

	tables, err := store.ExportTables(ctx)
	require.NoError(t, err)

	assert.Len(t, tables[string(models.EntityClient)], 2)
	assert.Len(t, tables[models.SnapshotOutboxKey], 1)
	// Пустые таблицы тоже присутствуют
	assert.Contains(t, tables, string(models.EntityPayment))
	assert.Empty(t, tables[string(models.EntityPayment)])
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	source := newTestStorage(t)

	require.NoError(t, source.PutRecord(ctx, models.EntityCredit, "cr1", storedRecord("cr1")))
	require.NoError(t, source.PutRecord(ctx, models.EntityCredit, "cr2", storedRecord("cr2")))
	require.NoError(t, source.PutRecord(ctx, models.EntityPayment, "p1", storedRecord("p1")))
	_, err := source.Enqueue(ctx, mutation(models.OpUpdate, "c9", `{"id":"c9"}`))
	require.NoError(t, err)

	tables, err := source.ExportTables(ctx)
	require.NoError(t, err)

	target := newTestStorage(t)
	require.NoError(t, target.PutRecord(ctx, models.EntityClient, "stale", storedRecord("stale")))
	_, err = target.Enqueue(ctx, mutation(models.OpCreate, "stale", `{}`))
	require.NoError(t, err)

	require.NoError(t, target.ReplaceAll(ctx, tables))

	for _, et := range models.EntityTypes() {
		n, err := target.CountRecords(ctx, et)
		require.NoError(t, err)
		assert.Equal(t, len(tables[string(et)]), n, et.String())
	}

	// Индекс неразрешенных восстановлен вместе с очередью
	entry, err := target.FindUnresolved(ctx, models.EntityClient, "c9")
	require.NoError(t, err)
	assert.Equal(t, models.OpUpdate, entry.Operation)

	_, err = target.FindUnresolved(ctx, models.EntityClient, "stale")
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

func TestReplaceAll_RollsBackOnBadRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	require.NoError(t, store.PutRecord(ctx, models.EntityClient, "keep", storedRecord("keep")))

	err := store.ReplaceAll(ctx, map[string][]json.RawMessage{
		string(models.EntityClient): {json.RawMessage(`{"data":{"id":"c1"}}`), json.RawMessage(`{"data":{}}`)},
	})
	assert.Error(t, err)

	// Ничего не изменилось
	rec, err := store.GetRecord(ctx, models.EntityClient, "keep")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	n, err := store.CountRecords(ctx, models.EntityClient)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceAll_UnknownTable(t *testing.T) {
	store := newTestStorage(t)

	err := store.ReplaceAll(context.Background(), map[string][]json.RawMessage{"loans": nil})
	assert.ErrorIs(t, err, storage.ErrUnknownTable)
}

func TestReplaceAll_DuplicateID(t *testing.T) {
	store := newTestStorage(t)

	row := json.RawMessage(`{"data":{"id":"c1"}}`)
	err := store.ReplaceAll(context.Background(), map[string][]json.RawMessage{
		string(models.EntityClient): {row, row},
	})
	assert.ErrorContains(t, err, "duplicate id")
}
