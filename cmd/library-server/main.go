package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JeanneIrsaeva/library-tracker/internal/accounts"
	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/server"
	"github.com/JeanneIrsaeva/library-tracker/internal/session"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/config"
	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/JeanneIrsaeva/library-tracker/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.NewWithFormat(os.Stdout, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database ready", slog.String("driver", db.Driver()))

	transcript, err := store.NewTranscript(ctx, db)
	if err != nil {
		return err
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = session.NewRedisStore(client)
		logger.Info("Refresh sessions stored in redis", slog.String("addr", cfg.Redis.Addr))
	}

	authority := identity.NewAuthority(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	app := server.NewApp(logger, ctx, cfg, server.Services{
		Verifier:   authority,
		Transcript: transcript,
		Accounts:   accounts.NewService(store.NewUsers(db), authority, sessions, logger),
		Library:    library.NewService(store.NewBooks(db), logger),
	})
	return app.Run()
}
