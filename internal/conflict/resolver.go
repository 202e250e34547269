// Package conflict decides which version of a record wins when the local and
// remote copies diverged while the device was offline.
package conflict

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

// ErrManualResolutionRequired is returned when the strategy for an entity type is MANUAL.
// The caller must surface the conflict to an operator instead of picking a winner.
var ErrManualResolutionRequired = errors.New("conflict requires manual resolution")

// DefaultTolerance расхождение updatedAt до которого записи считаются одинаковыми
const DefaultTolerance = time.Second

// Strategy стратегия разрешения конфликта
type Strategy string

const (
	LocalWins     Strategy = "LOCAL_WINS"
	RemoteWins    Strategy = "REMOTE_WINS"
	Merge         Strategy = "MERGE"
	LastWriteWins Strategy = "LAST_WRITE_WINS"
	Manual        Strategy = "MANUAL"
)

// Decision какая сторона попала в итоговую версию
type Decision string

const (
	KeepLocal  Decision = "keep_local"
	KeepRemote Decision = "keep_remote"
	Merged     Decision = "merged"
)

// Version одна сторона конфликта: сериализованная запись и ее updatedAt
type Version struct {
	UpdatedAt time.Time
	Payload   json.RawMessage
}

// Context контекст конфликта, создается диспетчером и никогда не сохраняется
type Context struct {
	Local      Version
	Remote     Version
	EntityType models.EntityType
	EntityID   string
}

// Resolution результат разрешения конфликта
type Resolution struct {
	Payload  json.RawMessage
	Strategy Strategy
	Decision Decision
}

// Resolver maps an entity type to a strategy and applies it.
// Resolver is a pure decision function: it never touches storage or network.
type Resolver struct {
	strategies map[models.EntityType]Strategy
	fallback   Strategy
	tolerance  time.Duration
}

// Option настраивает Resolver
type Option func(*Resolver)

// WithStrategy overrides the strategy for one entity type.
func WithStrategy(t models.EntityType, s Strategy) Option {
	return func(r *Resolver) {
		r.strategies[t] = s
	}
}

// WithTolerance sets the clock-skew tolerance used by DetectConflict.
func WithTolerance(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.tolerance = d
		}
	}
}

// NewResolver creates a Resolver with the default strategy table:
// payments keep the field-captured copy, credits keep the server balance,
// clients and installments are merged, everything else is last-write-wins.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		strategies: map[models.EntityType]Strategy{
			models.EntityPayment:     LocalWins,
			models.EntityCredit:      RemoteWins,
			models.EntityInstallment: Merge,
			models.EntityClient:      Merge,
		},
		fallback:  LastWriteWins,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StrategyFor returns the strategy applied to entity type t.
func (r *Resolver) StrategyFor(t models.EntityType) Strategy {
	if s, ok := r.strategies[t]; ok {
		return s
	}
	return r.fallback
}

// DetectConflict reports whether both versions carry a timestamp and those
// timestamps differ by more than the tolerance.
func (r *Resolver) DetectConflict(local, remote Version) bool {
	if local.UpdatedAt.IsZero() || remote.UpdatedAt.IsZero() {
		return false
	}
	diff := local.UpdatedAt.Sub(remote.UpdatedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff > r.tolerance
}

// Resolve applies the strategy of c.EntityType and returns the winning payload.
func (r *Resolver) Resolve(c Context) (Resolution, error) {
	strategy := r.StrategyFor(c.EntityType)

	switch strategy {
	case LocalWins:
		return Resolution{Payload: c.Local.Payload, Strategy: strategy, Decision: KeepLocal}, nil
	case RemoteWins:
		return Resolution{Payload: c.Remote.Payload, Strategy: strategy, Decision: KeepRemote}, nil
	case LastWriteWins:
		if localNewer(c) {
			return Resolution{Payload: c.Local.Payload, Strategy: strategy, Decision: KeepLocal}, nil
		}
		return Resolution{Payload: c.Remote.Payload, Strategy: strategy, Decision: KeepRemote}, nil
	case Merge:
		merged, err := mergePayloads(c.Local, c.Remote)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to merge %s %s: %w", c.EntityType, c.EntityID, err)
		}
		return Resolution{Payload: merged, Strategy: strategy, Decision: Merged}, nil
	case Manual:
		return Resolution{Strategy: strategy}, fmt.Errorf("%s %s: %w", c.EntityType, c.EntityID, ErrManualResolutionRequired)
	default:
		return Resolution{}, fmt.Errorf("unknown conflict strategy %q for %s", strategy, c.EntityType)
	}
}

// localNewer сравнивает updatedAt; при равенстве или отсутствии метки побеждает сервер
func localNewer(c Context) bool {
	if c.Local.UpdatedAt.IsZero() || c.Remote.UpdatedAt.IsZero() {
		return false
	}
	return c.Local.UpdatedAt.After(c.Remote.UpdatedAt)
}
