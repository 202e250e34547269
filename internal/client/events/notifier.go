// Package events announces committed local mutations to in-process observers.
package events

import (
	"log/slog"
	"sync"

	"github.com/iudanet/credisync/internal/models"
)

// Kind вид изменения записи
type Kind string

const (
	Created  Kind = "created"
	Updated  Kind = "updated"
	Deleted  Kind = "deleted"
	Restored Kind = "restored" // Restored таблица перезагружена из резервной копии
	Synced   Kind = "synced"   // Synced запись подтверждена сервером
)

// Event уведомление о зафиксированном локальном изменении
type Event struct {
	EntityType models.EntityType
	EntityID   string
	Kind       Kind
}

// Handler обработчик события
type Handler func(Event)

// Notifier is an in-process publish/subscribe channel keyed by entity type.
// Handlers run synchronously in Publish; a panicking handler is logged and
// does not affect the other subscribers or the publisher.
type Notifier struct {
	logger   *slog.Logger
	handlers map[models.EntityType]map[uint64]Handler
	all      map[uint64]Handler
	mu       sync.RWMutex
	nextID   uint64
}

// NewNotifier creates an empty Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:   logger,
		handlers: make(map[models.EntityType]map[uint64]Handler),
		all:      make(map[uint64]Handler),
	}
}

// Subscribe registers h for events of entity type t and returns a function that removes it.
// The returned function is safe to call more than once.
func (n *Notifier) Subscribe(t models.EntityType, h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.handlers[t] == nil {
		n.handlers[t] = make(map[uint64]Handler)
	}
	n.handlers[t][id] = h

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers[t], id)
	}
}

// SubscribeAll registers h for events of every entity type.
func (n *Notifier) SubscribeAll(h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.all[id] = h

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.all, id)
	}
}

// Publish delivers e to every matching subscriber.
func (n *Notifier) Publish(e Event) {
	// Копируем обработчики, чтобы подписчик мог отписаться внутри обработчика
	n.mu.RLock()
	targets := make([]Handler, 0, len(n.handlers[e.EntityType])+len(n.all))
	for _, h := range n.handlers[e.EntityType] {
		targets = append(targets, h)
	}
	for _, h := range n.all {
		targets = append(targets, h)
	}
	n.mu.RUnlock()

	for _, h := range targets {
		n.deliver(h, e)
	}
}

// Clear removes every subscriber.
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = make(map[models.EntityType]map[uint64]Handler)
	n.all = make(map[uint64]Handler)
}

func (n *Notifier) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Event handler panicked",
				"entity_type", e.EntityType,
				"entity_id", e.EntityID,
				"kind", e.Kind,
				"panic", r)
		}
	}()
	h(e)
}
