package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: refresh token not found")

// RefreshSession records one outstanding refresh token.
type RefreshSession struct {
	TokenID   string    `json:"token_id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store tracks outstanding refresh tokens. Consume is single-use: a token id
// can be redeemed at most once.
type Store interface {
	Save(ctx context.Context, s RefreshSession) error
	Consume(ctx context.Context, tokenID string) (*RefreshSession, error)
	Revoke(ctx context.Context, tokenID string) error
}
