package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Health(ctx context.Context) error { return f(ctx) }

func TestMonitor_OnOnlineFiresOnEdge(t *testing.T) {
	m := NewMonitor(false)
	fired := 0
	unsubscribe := m.OnOnline(func() { fired++ })

	m.Set(false)
	assert.Zero(t, fired)

	m.Set(true)
	assert.Equal(t, 1, fired)
	assert.True(t, m.Online())

	// Повторное "онлайн" не является переходом
	m.Set(true)
	assert.Equal(t, 1, fired)

	m.Set(false)
	m.Set(true)
	assert.Equal(t, 2, fired)

	unsubscribe()
	m.Set(false)
	m.Set(true)
	assert.Equal(t, 2, fired)
}

func TestProber_Probe(t *testing.T) {
	tests := []struct {
		name    string
		initial bool
		err     error
		want    bool
		fires   int
	}{
		{name: "comes online", initial: false, want: true, fires: 1},
		{name: "stays online", initial: true, want: true},
		{name: "goes offline", initial: true, err: errors.New("connection refused"), want: false},
		{name: "stays offline", initial: false, err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(tt.initial)
			fired := 0
			m.OnOnline(func() { fired++ })

			p := NewProber(checkerFunc(func(ctx context.Context) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.err
			}), m, 0, discardLogger())

			assert.Equal(t, tt.want, p.Probe(context.Background()))
			assert.Equal(t, tt.want, m.Online())
			assert.Equal(t, tt.fires, fired)
		})
	}
}
