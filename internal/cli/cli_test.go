package cli_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/JeanneIrsaeva/library-tracker/internal/cli"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	root := cli.NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--driver", "sqlite", "--dsn", dsn}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func seedUser(t *testing.T, dsn, email string) int64 {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	u, err := store.NewUsers(db).Create(ctx, email, "hash", "user")
	require.NoError(t, err)
	return u.ID
}

func TestBooksCreateListDelete(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "library.db")
	seedUser(t, dsn, "reader@example.com")

	out, err := executeCLI(t, dsn, "books", "create", "--user-id", "1", "--title", "Emma", "--author", "Jane Austen", "--genre", "novel", "--rating", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "created book 1: Emma")

	out, err = executeCLI(t, dsn, "books", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Emma")
	assert.Contains(t, out, "PLANNED")

	out, err = executeCLI(t, dsn, "books", "list", "--user-id", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "no books")

	_, err = executeCLI(t, dsn, "books", "delete", "1", "--user-id", "2")
	require.Error(t, err)

	out, err = executeCLI(t, dsn, "books", "delete", "1", "--user-id", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted book 1")
}

func TestBooksCreateValidates(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "library.db")
	seedUser(t, dsn, "reader@example.com")

	_, err := executeCLI(t, dsn, "books", "create", "--user-id", "1", "--title", "Emma", "--author", "Jane Austen", "--genre", "novel", "--rating", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rating")

	_, err = executeCLI(t, dsn, "books", "create", "--user-id", "9", "--title", "Emma", "--author", "Jane Austen", "--genre", "novel")
	require.Error(t, err)

	_, err = executeCLI(t, dsn, "books", "create", "--user-id", "1", "--title", "Emma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "author", "genre" not set`)
}

func TestUsersSetRole(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "library.db")
	seedUser(t, dsn, "reader@example.com")

	out, err := executeCLI(t, dsn, "users", "set-role", "reader@example.com", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "now admin")

	out, err = executeCLI(t, dsn, "users", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "reader@example.com")
	assert.Contains(t, out, "admin")

	_, err = executeCLI(t, dsn, "users", "set-role", "reader@example.com", "root")
	require.Error(t, err)
	_, err = executeCLI(t, dsn, "users", "set-role", "ghost@example.com", "admin")
	require.ErrorIs(t, err, store.ErrNotFound)
}
