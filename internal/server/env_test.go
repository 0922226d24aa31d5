package server_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/accounts"
	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/server"
	"github.com/JeanneIrsaeva/library-tracker/internal/session"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/config"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/JeanneIrsaeva/library-tracker/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app        *server.App
	authority  *identity.Authority
	users      *store.Users
	transcript *store.Transcript
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			APIAddress:      "127.0.0.1:0",
			ChatAddress:     "127.0.0.1:0",
			ChatPath:        "/",
			CORSOrigins:     []string{"http://localhost:3000"},
			ConnectionLimit: config.ConnectionLimitConfig{Mode: "reject"},
		},
		Transport: config.TransportConfig{SendBuffer: 64},
		Chat:      config.ChatConfig{HistoryLimit: 50},
	}
}

func newEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	transcript, err := store.NewTranscript(ctx, db)
	require.NoError(t, err)

	logger := logging.Discard()
	authority := identity.NewAuthority("test-secret", 30*time.Minute, time.Hour)
	users := store.NewUsers(db)

	app := server.NewApp(logger, ctx, cfg, server.Services{
		Verifier:   authority,
		Transcript: transcript,
		Accounts:   accounts.NewService(users, authority, session.NewMemoryStore(), logger),
		Library:    library.NewService(store.NewBooks(db), logger),
	})
	return &testEnv{app: app, authority: authority, users: users, transcript: transcript}
}

func (e *testEnv) token(t *testing.T, id int64, role string) string {
	t.Helper()
	tokens, err := e.authority.Issue(identity.Subject{ID: id, Role: role})
	require.NoError(t, err)
	return tokens.Access
}
