package telegram

import (
	"sync"
	"time"
)

type SessionState int

const (
	StateIdle SessionState = iota
	StateAwaitingDescription
)

type Session struct {
	State     SessionState
	UpdatedAt time.Time
}

// StateManager keeps the per-chat conversation state in memory.
type StateManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewStateManager() *StateManager {
	return &StateManager{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

func (m *StateManager) Get(chatID int64) Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return *session
	}
	return Session{State: StateIdle}
}

func (m *StateManager) Set(chatID int64, state SessionState) {
	m.mu.Lock()
	m.sessions[chatID] = &Session{State: state, UpdatedAt: m.now()}
	m.mu.Unlock()
}

func (m *StateManager) Reset(chatID int64) {
	m.mu.Lock()
	delete(m.sessions, chatID)
	m.mu.Unlock()
}

// Take returns the session and resets it in one step, so a description is
// consumed by exactly one message.
func (m *StateManager) Take(chatID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[chatID]
	if !ok {
		return Session{State: StateIdle}
	}
	delete(m.sessions, chatID)
	return *session
}
