package state

import (
	"time"

	"github.com/google/uuid"
)

// AuthState is the authentication state of a single connection.
type AuthState uint8

const (
	Unauthenticated AuthState = iota
	AuthUser
	AuthAdmin
)

func (s AuthState) String() string {
	switch s {
	case AuthUser:
		return "user"
	case AuthAdmin:
		return "admin"
	default:
		return "unauthenticated"
	}
}

// Transport is the send side of a live connection as seen by the registry.
type Transport interface {
	ID() uuid.UUID
	Send(msg []byte) error
	Close(err error)
}

// representation of a single transport-layer connection.
// Values handed out by a Manager are snapshots; mutate only through the Manager.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport
	State     AuthState
	SubjectID int64 // set once bound as a regular user
	CreatedAt time.Time
}

func (c *Connection) Authenticated() bool {
	return c.State != Unauthenticated
}
