package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Transcript is the durable chat log. Append assigns ids and creation
// timestamps that never go backwards in insertion order.
type Transcript struct {
	db *DB

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewTranscript(ctx context.Context, db *DB) (*Transcript, error) {
	t := &Transcript{db: db, now: time.Now}

	var maxCreated sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM chat_messages`).Scan(&maxCreated); err != nil {
		return nil, fmt.Errorf("load last transcript timestamp: %w", err)
	}
	if maxCreated.Valid {
		t.last = time.Unix(0, maxCreated.Int64).UTC()
	}
	return t, nil
}

// Append persists a message and returns it with id and timestamp filled in.
func (t *Transcript) Append(ctx context.Context, subjectID int64, body string, origin Origin) (*ChatMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	created := t.now().UTC()
	if created.Before(t.last) {
		created = t.last
	}

	var id int64
	err := t.db.QueryRowContext(ctx, t.db.rebind(`
		INSERT INTO chat_messages (user_id, message, is_admin, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), subjectID, body, int(origin), created.UnixNano()).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	t.last = created

	return &ChatMessage{
		ID:        id,
		SubjectID: subjectID,
		Body:      body,
		Origin:    origin,
		CreatedAt: created,
	}, nil
}

// Recent returns the newest limit messages matching filter, oldest first.
func (t *Transcript) Recent(ctx context.Context, filter HistoryFilter, limit int) ([]ChatMessage, error) {
	where, args := filter.clause()
	args = append(args, limit)
	msgs, err := t.query(ctx, `
		SELECT id, user_id, message, is_admin, created_at
		FROM chat_messages`+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// List pages through messages in insertion order.
func (t *Transcript) List(ctx context.Context, filter HistoryFilter, offset, limit int) ([]ChatMessage, error) {
	where, args := filter.clause()
	args = append(args, limit, offset)
	return t.query(ctx, `
		SELECT id, user_id, message, is_admin, created_at
		FROM chat_messages`+where+`
		ORDER BY id ASC
		LIMIT ? OFFSET ?`, args...)
}

func (f HistoryFilter) clause() (string, []any) {
	var conds []string
	var args []any
	if f.SubjectID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.SubjectID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (t *Transcript) query(ctx context.Context, query string, args ...any) ([]ChatMessage, error) {
	rows, err := t.db.QueryContext(ctx, t.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var (
			m       ChatMessage
			isAdmin int
			created int64
		)
		if err := rows.Scan(&m.ID, &m.SubjectID, &m.Body, &isAdmin, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Origin = Origin(isAdmin)
		m.CreatedAt = time.Unix(0, created).UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}
