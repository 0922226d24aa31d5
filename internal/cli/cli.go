package cli

import (
	"fmt"
	"io"

	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/config"
	"github.com/JeanneIrsaeva/library-tracker/pkg/logging"
	"github.com/spf13/cobra"
)

// app holds what subcommands share once the database is open.
type app struct {
	db      *store.DB
	users   *store.Users
	books   *store.Books
	library *library.Service
}

func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the management CLI. It works directly on the database
// configured for the server unless --driver/--dsn override it.
func NewRootCmd() *cobra.Command {
	var (
		driver string
		dsn    string
		a      app
	)

	rootCmd := &cobra.Command{
		Use:           "library-cli",
		Short:         "Manage the personal library database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewWithFormat(io.Discard, logging.LevelError, "text")
			cfg, err := config.Load(logger, "config")
			if err != nil {
				return err
			}
			if driver == "" {
				driver = cfg.Database.Driver
			}
			if dsn == "" {
				dsn = cfg.Database.DSN
			}

			db, err := store.Open(cmd.Context(), driver, dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			a.db = db
			a.users = store.NewUsers(db)
			a.books = store.NewBooks(db)
			a.library = library.NewService(a.books, logger)
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.db == nil {
				return nil
			}
			return a.db.Close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN or sqlite file path")

	rootCmd.AddCommand(
		newBooksCmd(&a),
		newUsersCmd(&a),
	)
	return rootCmd
}
