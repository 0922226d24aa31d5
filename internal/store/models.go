package store

import "time"

// Origin tells who authored a chat message.
type Origin int

const (
	OriginUser  Origin = 0
	OriginAdmin Origin = 1
)

// ChatMessage is one persisted transcript entry. For admin-authored
// messages SubjectID is the target user, not the admin.
type ChatMessage struct {
	ID        int64
	SubjectID int64
	Body      string
	Origin    Origin
	CreatedAt time.Time
}

func (m *ChatMessage) IsAdmin() bool {
	return m.Origin == OriginAdmin
}

// HistoryFilter narrows transcript queries; a nil SubjectID means all users.
type HistoryFilter struct {
	SubjectID *int64
}

type User struct {
	ID             int64
	Email          string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
}

type BookStatus string

const (
	StatusReading BookStatus = "READING"
	StatusPlanned BookStatus = "PLANNED"
	StatusRead    BookStatus = "READ"
)

func (s BookStatus) Valid() bool {
	switch s {
	case StatusReading, StatusPlanned, StatusRead:
		return true
	}
	return false
}

type Book struct {
	ID             int64
	UserID         int64
	Title          string
	Author         string
	Genre          string
	Description    *string
	Rating         *int
	FavoriteQuotes *string
	StartDate      *time.Time
	EndDate        *time.Time
	Status         BookStatus
}
