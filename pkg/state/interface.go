package state

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAlreadyRegistered = errors.New("connection is already registered")
	ErrUnknownConnection = errors.New("unknown connection")
)

// Manager is the process-wide connection registry. All methods are safe for
// concurrent use.
type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Transport, ipAddr string) (*Connection, error)
	// DeregisterConnection removes the connection and every binding that
	// references it. Unknown ids are a no-op.
	DeregisterConnection(connID uuid.UUID) error
	GetConnection(connID uuid.UUID) (*Connection, bool)
	AllConnections() []*Connection

	// --- Identity Binding ---
	// BindUser points subjectID at connID, replacing any earlier connection
	// for that subject without closing it.
	BindUser(connID uuid.UUID, subjectID int64) error
	BindAdmin(connID uuid.UUID) error
	LookupUser(subjectID int64) (*Connection, bool)
	// Admins returns a snapshot of the admin set.
	Admins() []*Connection

	// --- Per-IP accounting ---
	ConnectionCountByIP(ip string) int
	FindOldestConnectionByIP(ip string) (*Connection, bool)
}
