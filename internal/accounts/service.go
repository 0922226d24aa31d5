package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/JeanneIrsaeva/library-tracker/internal/session"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
)

type UserRepository interface {
	Create(ctx context.Context, email, hashedPassword, role string) (*store.User, error)
	GetByEmail(ctx context.Context, email string) (*store.User, error)
	GetByID(ctx context.Context, id int64) (*store.User, error)
}

type TokenIssuer interface {
	Issue(s identity.Subject) (*identity.Tokens, error)
	VerifyRefresh(token string) (*identity.Claims, error)
}

// Result is what register, login and refresh hand back to the caller.
type Result struct {
	User   *store.User
	Tokens *identity.Tokens
}

type Service struct {
	users    UserRepository
	issuer   TokenIssuer
	sessions session.Store
	logger   *slog.Logger
}

func NewService(users UserRepository, issuer TokenIssuer, sessions session.Store, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		issuer:   issuer,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "accounts")),
	}
}

func (s *Service) Register(ctx context.Context, email, password, confirm string) (*Result, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return nil, ErrInvalidEmail
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, hash, identity.RoleUser)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered", slog.Int64("userID", user.ID))
	return s.issue(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// hide whether user exists or not
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.HashedPassword, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Refresh redeems a refresh token once and returns a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if _, err := s.sessions.Consume(ctx, claims.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("Refresh token reused or unknown", slog.Int64("userID", claims.UserID))
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	// reload so role changes take effect on refresh
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout revokes a refresh token so it can no longer be redeemed.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return ErrInvalidRefresh
	}
	if err := s.sessions.Revoke(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	s.logger.Info("User logged out", slog.Int64("userID", claims.UserID))
	return nil
}

func (s *Service) issue(ctx context.Context, user *store.User) (*Result, error) {
	tokens, err := s.issuer.Issue(identity.Subject{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session.RefreshSession{
		TokenID:   tokens.RefreshID,
		UserID:    user.ID,
		ExpiresAt: tokens.RefreshExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("record refresh session: %w", err)
	}
	return &Result{User: user, Tokens: tokens}, nil
}
