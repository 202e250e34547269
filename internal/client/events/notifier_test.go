package events

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/credisync/internal/models"
)

func newTestNotifier() *Notifier {
	return NewNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotifier_SubscribeByType(t *testing.T) {
	n := newTestNotifier()

	var payments, credits []Event
	n.Subscribe(models.EntityPayment, func(e Event) { payments = append(payments, e) })
	n.Subscribe(models.EntityCredit, func(e Event) { credits = append(credits, e) })

	n.Publish(Event{EntityType: models.EntityPayment, EntityID: "p1", Kind: Created})

	assert.Len(t, payments, 1)
	assert.Empty(t, credits)
	assert.Equal(t, "p1", payments[0].EntityID)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := newTestNotifier()

	calls := 0
	unsubscribe := n.Subscribe(models.EntityClient, func(Event) { calls++ })

	n.Publish(Event{EntityType: models.EntityClient})
	unsubscribe()
	unsubscribe()
	n.Publish(Event{EntityType: models.EntityClient})

	assert.Equal(t, 1, calls)
}

func TestNotifier_SubscribeAll(t *testing.T) {
	n := newTestNotifier()

	var got []models.EntityType
	n.SubscribeAll(func(e Event) { got = append(got, e.EntityType) })

	n.Publish(Event{EntityType: models.EntityClient})
	n.Publish(Event{EntityType: models.EntityInstallment})

	assert.Equal(t, []models.EntityType{models.EntityClient, models.EntityInstallment}, got)
}

func TestNotifier_PanicIsolated(t *testing.T) {
	n := newTestNotifier()

	delivered := false
	n.Subscribe(models.EntityCredit, func(Event) { panic("boom") })
	n.SubscribeAll(func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		n.Publish(Event{EntityType: models.EntityCredit, Kind: Updated})
	})
	assert.True(t, delivered)
}

func TestNotifier_UnsubscribeInsideHandler(t *testing.T) {
	n := newTestNotifier()

	calls := 0
	var unsubscribe func()
	unsubscribe = n.Subscribe(models.EntityRoute, func(Event) {
		calls++
		unsubscribe()
	})

	n.Publish(Event{EntityType: models.EntityRoute})
	n.Publish(Event{EntityType: models.EntityRoute})

	assert.Equal(t, 1, calls)
}

func TestNotifier_Clear(t *testing.T) {
	n := newTestNotifier()

	calls := 0
	n.Subscribe(models.EntityPayment, func(Event) { calls++ })
	n.SubscribeAll(func(Event) { calls++ })
	n.Clear()

	n.Publish(Event{EntityType: models.EntityPayment})
	assert.Zero(t, calls)
}
