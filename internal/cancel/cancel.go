// Package cancel implements the cooperative cancellation token attached
// to the currently-processing job (C11). A token is a context plus an
// idempotent cancel switch; killing children is delegated to
// exec.CommandContext (via executils.CommandContext) elsewhere, per the "no async runtime
// dependency" design note.
package cancel

import (
	"context"
	"sync"
)

// Token is handed to exactly one in-flight job. Cancel may be called any
// number of times; only the first call has effect.
type Token struct {
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	cancelled bool
}

func newToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

func (t *Token) Context() context.Context { return t.ctx }

func (t *Token) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.cancel()
}

func (t *Token) Cancelled() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Manager owns the single current token, since at most one job is ever
// in flight (§5). It is a process-wide singleton.
type Manager struct {
	mu      sync.Mutex
	current *Token
}

func NewManager() *Manager {
	return &Manager{}
}

// Begin creates a fresh token for a new current job, replacing any
// previous (already-finished) token.
func (m *Manager) Begin() *Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := newToken()
	m.current = t
	return t
}

// CancelCurrent fires the current token, if any. A no-op when no job is
// in flight.
func (m *Manager) CancelCurrent() {
	m.mu.Lock()
	t := m.current
	m.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

// End releases the reference to the finished token so a late CancelCurrent
// call (racing the processor's own completion) does not affect the next
// job's token.
func (m *Manager) End(t *Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == t {
		m.current = nil
	}
}
