package router

import (
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/store"
)

// inbound frame types
const (
	TypeAuth         = "auth"
	TypeMessage      = "message"
	TypeAdminMessage = "admin_message"
	TypeGetHistory   = "get_history"
	TypeTypingStart  = "typing_start"
	TypeTypingStop   = "typing_stop"
)

// outbound-only frame types
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuthSuccess           = "auth_success"
	TypeAuthError             = "auth_error"
	TypeMessageSent           = "message_sent"
	TypeUserMessage           = "user_message"
	TypeUserConnected         = "user_connected"
	TypeChatHistory           = "chat_history"
	TypeError                 = "error"
)

// inbound field paths
const (
	fieldType         = "type"
	fieldToken        = "token"
	fieldMessage      = "message"
	fieldTargetUserID = "target_user_id"
)

type ConnectionEstablished struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type AuthSuccess struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ErrorFrame is used for both "error" and "auth_error".
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type MessageSent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

type UserMessage struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	MessageID int64  `json:"message_id"`
}

type AdminMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	MessageID int64  `json:"message_id"`
}

type UserConnected struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type ChatHistory struct {
	Type     string         `json:"type"`
	Messages []HistoryEntry `json:"messages"`
}

// HistoryEntry mirrors a stored message. IsAdmin is 0 or 1.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	IsAdmin   int    `json:"is_admin"`
	CreatedAt string `json:"created_at"`
}

// Typing is relayed for typing_start and typing_stop.
type Typing struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// HistoryEntries converts stored messages into their wire form.
func HistoryEntries(msgs []store.ChatMessage) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, HistoryEntry{
			ID:        m.ID,
			UserID:    m.SubjectID,
			Message:   m.Body,
			IsAdmin:   int(m.Origin),
			CreatedAt: formatTimestamp(m.CreatedAt),
		})
	}
	return entries
}
