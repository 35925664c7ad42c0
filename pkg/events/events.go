package events

import (
	"sync"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

// ChangeEvent is emitted whenever a profile or rule mutates.
type ChangeEvent struct {
	Type      string    `json:"type"` // profile_created, profile_updated, profile_deleted, profile_activated, rule_added, rule_updated, rule_deleted
	ProfileID string    `json:"profile_id"`
	RuleID    string    `json:"rule_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DecisionEvent is emitted for every completed evaluation.
type DecisionEvent struct {
	Context types.PermissionContext `json:"context"`
	Result  types.PermissionResult  `json:"result"`
}

// ErrorEvent surfaces an evaluation failure together with the context that
// triggered it.
type ErrorEvent struct {
	Message string                  `json:"message"`
	Context types.PermissionContext `json:"context"`
}

// Bus is a minimal in-process publish/subscribe hub with one channel per
// event kind. Subscribing returns an unsubscribe func. Handlers run
// synchronously on the publisher's goroutine; they must not block.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	change   map[int]func(ChangeEvent)
	decision map[int]func(DecisionEvent)
	errors   map[int]func(ErrorEvent)
}

func NewBus() *Bus {
	return &Bus{
		change:   make(map[int]func(ChangeEvent)),
		decision: make(map[int]func(DecisionEvent)),
		errors:   make(map[int]func(ErrorEvent)),
	}
}

// OnChange registers a handler for profile/rule change events.
func (b *Bus) OnChange(fn func(ChangeEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.change[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.change, id)
	}
}

// OnDecision registers a handler for per-decision events.
func (b *Bus) OnDecision(fn func(DecisionEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.decision[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.decision, id)
	}
}

// OnError registers a handler for evaluation error events.
func (b *Bus) OnError(fn func(ErrorEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.errors[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.errors, id)
	}
}

// PublishChange delivers a change event to all subscribers.
func (b *Bus) PublishChange(evt ChangeEvent) {
	b.mu.RLock()
	handlers := make([]func(ChangeEvent), 0, len(b.change))
	for _, fn := range b.change {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

// PublishDecision delivers a decision event to all subscribers.
func (b *Bus) PublishDecision(evt DecisionEvent) {
	b.mu.RLock()
	handlers := make([]func(DecisionEvent), 0, len(b.decision))
	for _, fn := range b.decision {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}

// PublishError delivers an error event to all subscribers.
func (b *Bus) PublishError(evt ErrorEvent) {
	b.mu.RLock()
	handlers := make([]func(ErrorEvent), 0, len(b.errors))
	for _, fn := range b.errors {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}
