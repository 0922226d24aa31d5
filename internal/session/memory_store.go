package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps refresh sessions in process memory. Used when no
// Redis address is configured; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]RefreshSession
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]RefreshSession),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Save(_ context.Context, s RefreshSession) error {
	if s.TokenID == "" || s.UserID == 0 {
		return errors.New("session: missing token_id or user_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	m.sessions[s.TokenID] = s
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, tokenID string) (*RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.sessions, tokenID)
	if !m.now().Before(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenID)
	return nil
}

func (m *MemoryStore) sweepLocked() {
	now := m.now()
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}
