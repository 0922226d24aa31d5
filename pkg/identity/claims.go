package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by every issued token.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claim carries the administrator role.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Subject is the identity claim the chat core works with.
type Subject struct {
	ID    int64
	Email string
	Role  string
}
