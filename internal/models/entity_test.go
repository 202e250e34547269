package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload_ExcludesSyncMeta(t *testing.T) {
	p := &Payment{
		Base:     Base{ID: "pay-1", OwnerScopeID: "scope"},
		Amount:   decimal.NewFromInt(5000),
		CreditID: "cr-1",
	}
	p.MarkPending()
	p.RemoteVersion = 7

	data, err := EncodePayload(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "pay-1", fields["id"])
	assert.Equal(t, "5000", fields["amount"])
	assert.NotContains(t, fields, "pending_sync")
	assert.NotContains(t, fields, "SyncMeta")
	assert.NotContains(t, fields, "remote_version")
}

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord(EntityCredit, []byte(`{"id":"cr-1","ownerScopeId":"s","outstandingBalance":"80"}`))
	require.NoError(t, err)

	credit, ok := rec.(*Credit)
	require.True(t, ok)
	assert.Equal(t, "cr-1", credit.RecordID())
	assert.True(t, credit.OutstandingBalance.Equal(decimal.NewFromInt(80)))

	_, err = DecodeRecord("loan", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEntityType)

	_, err = DecodeRecord(EntityCredit, []byte(`{not json`))
	assert.Error(t, err)
}

func TestSyncMeta_MarkSynced(t *testing.T) {
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var m SyncMeta
	m.MarkPending()
	m.MarkSynced(updated.Add(-time.Minute), updated, 3)

	assert.False(t, m.PendingSync)
	require.NotNil(t, m.LastSyncedAt)
	assert.False(t, m.LastSyncedAt.Before(updated))
	assert.Equal(t, int64(3), m.RemoteVersion)

	// нулевая версия не затирает сохраненную
	m.MarkSynced(updated.Add(time.Hour), updated, 0)
	assert.Equal(t, int64(3), m.RemoteVersion)
	assert.Equal(t, updated.Add(time.Hour), *m.LastSyncedAt)
}

func TestBase_Touch(t *testing.T) {
	first := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	var b Base
	b.Touch(first)
	b.Touch(second)

	assert.Equal(t, first, b.CreatedAt)
	assert.Equal(t, second, b.UpdatedAt)
}

func TestPayloadUpdatedAt(t *testing.T) {
	ts := PayloadUpdatedAt([]byte(`{"updatedAt":"2024-05-01T10:00:00Z"}`))
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), ts)

	assert.True(t, PayloadUpdatedAt([]byte(`{}`)).IsZero())
	assert.True(t, PayloadUpdatedAt([]byte(`garbage`)).IsZero())
}

func TestEntityTypes(t *testing.T) {
	for _, et := range EntityTypes() {
		assert.True(t, et.IsValid(), et.String())
	}
	assert.False(t, EntityType("loan").IsValid())
}

func TestInstallment_Due(t *testing.T) {
	i := &Installment{ScheduledAmount: decimal.NewFromInt(5000)}
	assert.True(t, i.Due().Equal(decimal.NewFromInt(5000)))

	i.PaidAmount = decimal.NewFromInt(2000)
	assert.True(t, i.Due().Equal(decimal.NewFromInt(3000)))

	i.OutstandingBalance = decimal.NewFromInt(1000)
	assert.True(t, i.Due().Equal(decimal.NewFromInt(1000)))
}
