package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/credisync/internal/models"
)

func newTestService(t *testing.T, env *testEnv) (*Service, *Scheduler) {
	t.Helper()
	scheduler := NewScheduler(env.dispatcher, time.Hour, discardLogger())
	return NewService(env.dispatcher, scheduler, env.monitor, nil, env.db, env.db, discardLogger()), scheduler
}

func TestService_GetStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	remote := newFakeRemote()
	env.registry.Register(models.EntityClient, remote)
	svc, _ := newTestService(t, env)

	env.save(t, newClient("c1", "Maria Lopez", t1), models.OpCreate)
	env.save(t, newClient("c2", "Jose Perez", t1), models.OpCreate)

	count, err := svc.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.True(t, stats.Online)
	assert.Equal(t, StateIdle, stats.State)
	assert.True(t, stats.LastSyncAt.IsZero())

	result, err := svc.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Committed)

	stats, err = svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
	assert.Equal(t, 2, stats.Synced)
	assert.False(t, stats.LastSyncAt.IsZero())
}

func TestService_SyncNowOffline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.registry.Register(models.EntityClient, &RemoteOpsMock{})
	svc, _ := newTestService(t, env)

	env.save(t, newClient("c1", "Maria Lopez", t1), models.OpCreate)
	env.monitor.Set(false)

	result, err := svc.SyncNow(ctx)
	require.NoError(t, err)
	assert.True(t, result.Offline)

	count, err := svc.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_Run_DrainsWhenBackOnline(t *testing.T) {
	env := newTestEnv(t)
	remote := newFakeRemote()
	env.registry.Register(models.EntityClient, remote)
	svc, scheduler := newTestService(t, env)

	outcomes := make(chan drainOutcome, 4)
	scheduler.OnResult(func(trigger Trigger, result *DrainResult, err error) {
		outcomes <- drainOutcome{trigger: trigger, result: result, err: err}
	})

	env.save(t, newClient("c1", "Maria Lopez", t1), models.OpCreate)
	env.monitor.Set(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	startup := waitOutcome(t, outcomes)
	assert.Equal(t, TriggerStartup, startup.trigger)
	assert.True(t, startup.result.Offline)

	// Запрос синхронизации без связи ничего не отправляет
	svc.ForceSync()
	forced := waitOutcome(t, outcomes)
	assert.Equal(t, TriggerExplicit, forced.trigger)
	assert.True(t, forced.result.Offline)
	assert.Zero(t, remote.creates)

	env.monitor.Set(true)
	online := waitOutcome(t, outcomes)
	assert.Equal(t, TriggerOnline, online.trigger)
	require.NoError(t, online.err)
	assert.Equal(t, 1, online.result.Committed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}
