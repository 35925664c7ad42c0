package prompt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/permgate-org/permgate/pkg/types"
)

var (
	ErrRequestNotFound = errors.New("prompt request not found")
	ErrTimeout         = errors.New("prompt request timed out")
)

// Response carries the user's answer to a prompt decision. Always asks the
// engine to remember the answer as a rule.
type Response struct {
	Approved bool
	Always   bool
}

// Pending describes an open prompt for listing in a host UI.
type Pending struct {
	ID      string                  `json:"id"`
	Context types.PermissionContext `json:"context"`
}

// Manager tracks prompt decisions that are waiting on a user answer. One
// buffered channel per request; the waiter owns cleanup.
type Manager struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
	log     *slog.Logger
}

type pendingEntry struct {
	ch   chan Response
	pctx types.PermissionContext
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pending: make(map[string]pendingEntry),
		log:     logger,
	}
}

// Request registers a new prompt and returns its id. The caller must
// follow up with Wait (usually in the same goroutine).
func (m *Manager) Request(pctx types.PermissionContext) string {
	id := types.GenerateDecisionID()
	m.mu.Lock()
	m.pending[id] = pendingEntry{ch: make(chan Response, 1), pctx: pctx}
	m.mu.Unlock()
	return id
}

// Respond resolves a pending prompt with the user's answer.
func (m *Manager) Respond(id string, resp Response) error {
	m.mu.Lock()
	entry, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return ErrRequestNotFound
	}

	select {
	case entry.ch <- resp:
		return nil
	default:
		return errors.New("prompt already answered")
	}
}

// Wait blocks until the prompt is answered, the timeout elapses or the
// context is cancelled. The pending entry is removed on return.
func (m *Manager) Wait(ctx context.Context, id string, timeout time.Duration) (Response, error) {
	m.mu.Lock()
	entry, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return Response{}, ErrRequestNotFound
	}

	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	select {
	case resp := <-entry.ch:
		return resp, nil
	case <-time.After(timeout):
		m.log.Warn("prompt timed out", "id", id, "uri", entry.pctx.URI)
		return Response{}, ErrTimeout
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Context returns the permission context of a pending prompt.
func (m *Manager) Context(id string) (types.PermissionContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[id]
	return entry.pctx, ok
}

// Remove drops a pending prompt without answering it. Used by hosts that
// resolve prompts out of band instead of blocking in Wait.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}

// List returns the open prompts, for display to the user.
func (m *Manager) List() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pending, 0, len(m.pending))
	for id, entry := range m.pending {
		out = append(out, Pending{ID: id, Context: entry.pctx})
	}
	return out
}
