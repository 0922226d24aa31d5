package router

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JeanneIrsaeva/library-tracker/pkg/state"
)

// Broadcaster delivers frames to single connections and to the admin set.
// Delivery is best-effort: failures are logged, never returned, and never
// remove a connection from the registry.
type Broadcaster struct {
	logger   *slog.Logger
	registry state.Manager
}

func NewBroadcaster(logger *slog.Logger, registry state.Manager) *Broadcaster {
	return &Broadcaster{
		logger:   logger.With(slog.String("component", "broadcaster")),
		registry: registry,
	}
}

// SendTo delivers a single frame to conn.
func (b *Broadcaster) SendTo(conn *state.Connection, frame any) {
	msg, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("Failed to marshal outbound frame", slog.Any("error", err))
		return
	}
	b.deliver(conn, msg)
}

// BroadcastToAdmins delivers frame to every admin connected at call time and
// returns how many sends were accepted.
func (b *Broadcaster) BroadcastToAdmins(frame any) int {
	msg, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("Failed to marshal broadcast frame", slog.Any("error", err))
		return 0
	}

	admins := b.registry.Admins()
	delivered := 0
	for _, admin := range admins {
		if b.deliver(admin, msg) {
			delivered++
		}
	}
	b.logger.Debug("Broadcast to admins", slog.Int("admins", len(admins)), slog.Int("delivered", delivered))
	return delivered
}

// NotifyAdminsNewUser tells every admin that subjectID has joined the chat.
func (b *Broadcaster) NotifyAdminsNewUser(subjectID int64) {
	b.BroadcastToAdmins(UserConnected{
		Type:    TypeUserConnected,
		UserID:  subjectID,
		Message: fmt.Sprintf("User %d joined the chat", subjectID),
	})
}

// Greet sends the connection_established frame to a freshly registered connection.
func (b *Broadcaster) Greet(conn *state.Connection) {
	b.SendTo(conn, ConnectionEstablished{
		Type:    TypeConnectionEstablished,
		Message: "WebSocket connection established. Please authenticate.",
	})
}

func (b *Broadcaster) deliver(conn *state.Connection, msg []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic while delivering frame", slog.String("connID", conn.ID.String()), slog.Any("panic", r))
			ok = false
		}
	}()
	if err := conn.Transport.Send(msg); err != nil {
		b.logger.Warn("Failed to deliver frame",
			slog.String("connID", conn.ID.String()),
			slog.Any("error", err),
		)
		return false
	}
	return true
}
