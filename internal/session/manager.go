package session

import (
	"sync/atomic"

	"github.com/nickuc/nlogin-addon/internal/cryptox"
)

// Manager owns the single live session behind an atomically swappable
// reference, so concurrent join/quit callbacks stay safe.
type Manager struct {
	current atomic.Pointer[Session]
}

func NewManager() *Manager {
	return &Manager{}
}

// New creates a session with a fresh challenge nonce, replacing any
// previous one.
func (m *Manager) New() *Session {
	s := New(cryptox.Challenge())
	m.current.Store(s)
	return s
}

// Invalidate discards the current session. Idempotent.
func (m *Manager) Invalidate() {
	m.current.Store(nil)
}

// Current returns the live session, or nil when none exists.
func (m *Manager) Current() *Session {
	return m.current.Load()
}
