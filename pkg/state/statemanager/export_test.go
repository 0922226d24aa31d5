package statemanager

// Stats reports container sizes.
func (m *InMemoryManager) Stats() (conns, users, admins int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns), len(m.users), len(m.admins)
}
