package statemanager

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager keeps every live connection plus the user index and the
// admin set. A single lock guards all three so a connection can never be
// bound while absent from conns.
type InMemoryManager struct {
	conns  map[uuid.UUID]*state.Connection
	users  map[int64]*state.Connection
	admins map[uuid.UUID]*state.Connection

	mu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[int64]*state.Connection),
		admins: make(map[uuid.UUID]*state.Connection),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func snapshot(c *state.Connection) *state.Connection {
	cp := *c
	return &cp
}

func (m *InMemoryManager) RegisterConnection(t state.Transport, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, state.ErrAlreadyRegistered
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		State:     state.Unauthenticated,
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()), slog.Int("total", len(m.conns)))
	return snapshot(newConn), nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		// already deregistered
		return nil
	}
	delete(m.conns, connID)
	m.unbindLocked(conn)

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()), slog.Int("total", len(m.conns)))
	return nil
}

// unbindLocked drops every index entry that points at conn.
func (m *InMemoryManager) unbindLocked(conn *state.Connection) {
	if conn.State == state.AuthUser {
		if current, ok := m.users[conn.SubjectID]; ok && current == conn {
			delete(m.users, conn.SubjectID)
			m.logger.Debug("Detached connection from user", slog.String("connID", conn.ID.String()), slog.Int64("userID", conn.SubjectID))
		}
	}
	delete(m.admins, conn.ID)
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	if !ok {
		return nil, false
	}
	return snapshot(conn), true
}

func (m *InMemoryManager) AllConnections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, snapshot(c))
	}
	return conns
}

// --- Identity Binding ---

func (m *InMemoryManager) BindUser(connID uuid.UUID, subjectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return fmt.Errorf("bind user %d: %w", subjectID, state.ErrUnknownConnection)
	}

	// re-authentication on the same connection replaces its own previous binding.
	m.unbindLocked(conn)

	if prev, exists := m.users[subjectID]; exists && prev != conn {
		// The earlier connection stays open but is no longer routable as this user.
		m.logger.Info("User binding replaced by newer connection",
			slog.Int64("userID", subjectID),
			slog.String("previousConnID", prev.ID.String()),
			slog.String("connID", connID.String()),
		)
	}
	conn.State = state.AuthUser
	conn.SubjectID = subjectID
	m.users[subjectID] = conn

	m.logger.Debug("Associated connection with user", slog.String("connID", connID.String()), slog.Int64("userID", subjectID))
	return nil
}

func (m *InMemoryManager) BindAdmin(connID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return fmt.Errorf("bind admin: %w", state.ErrUnknownConnection)
	}
	m.unbindLocked(conn)

	conn.State = state.AuthAdmin
	conn.SubjectID = 0
	m.admins[connID] = conn

	m.logger.Debug("Connection joined admin set", slog.String("connID", connID.String()), slog.Int("admins", len(m.admins)))
	return nil
}

func (m *InMemoryManager) LookupUser(subjectID int64) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.users[subjectID]
	if !ok {
		return nil, false
	}
	return snapshot(conn), true
}

func (m *InMemoryManager) Admins() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	admins := make([]*state.Connection, 0, len(m.admins))
	for _, c := range m.admins {
		admins = append(admins, snapshot(c))
	}
	return admins
}

// --- Per-IP accounting ---

func (m *InMemoryManager) ConnectionCountByIP(ip string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.conns {
		if c.IPAddress == ip {
			count++
		}
	}
	return count
}

func (m *InMemoryManager) FindOldestConnectionByIP(ip string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var oldest *state.Connection
	for _, c := range m.conns {
		if c.IPAddress != ip {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, false
	}
	return snapshot(oldest), true
}

// CheckInvariant verifies that every bound connection is also registered.
func (m *InMemoryManager) CheckInvariant() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for subjectID, c := range m.users {
		if registered, ok := m.conns[c.ID]; !ok || registered != c {
			return fmt.Errorf("user %d bound to unregistered connection %s", subjectID, c.ID)
		}
	}
	for id := range m.admins {
		if _, ok := m.conns[id]; !ok {
			return fmt.Errorf("admin connection %s is not registered", id)
		}
	}
	return nil
}
