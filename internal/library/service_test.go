package library_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/library"
	"github.com/JeanneIrsaeva/library-tracker/internal/store"
	"github.com/JeanneIrsaeva/library-tracker/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*library.Service, int64, int64) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := store.NewUsers(db)
	a, err := users.Create(ctx, "a@example.com", "hash", "user")
	require.NoError(t, err)
	b, err := users.Create(ctx, "b@example.com", "hash", "user")
	require.NoError(t, err)

	return library.NewService(store.NewBooks(db), logging.Discard()), a.ID, b.ID
}

func ptr[T any](v T) *T { return &v }

func TestCreateDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, owner, _ := setup(t)

	book, err := svc.Create(ctx, owner, library.BookInput{Title: " Emma ", Author: "Jane Austen", Genre: "novel", Rating: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, "Emma", book.Title)
	assert.Equal(t, store.StatusPlanned, book.Status)
	assert.Nil(t, book.Rating)

	cases := map[string]library.BookInput{
		"title":    {Author: "x", Genre: "y"},
		"author":   {Title: "x", Author: strings.Repeat("a", 101), Genre: "y"},
		"rating":   {Title: "x", Author: "y", Genre: "z", Rating: ptr(6)},
		"status":   {Title: "x", Author: "y", Genre: "z", Status: "LOST"},
		"end_date": {Title: "x", Author: "y", Genre: "z", StartDate: ptr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)), EndDate: ptr(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))},
	}
	for field, in := range cases {
		_, err := svc.Create(ctx, owner, in)
		var verr *library.ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestOwnershipRules(t *testing.T) {
	ctx := context.Background()
	svc, owner, stranger := setup(t)

	book, err := svc.Create(ctx, owner, library.BookInput{Title: "Emma", Author: "Jane Austen", Genre: "novel"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, book.ID, stranger)
	assert.ErrorIs(t, err, library.ErrForbidden)
	_, err = svc.Get(ctx, book.ID+100, owner)
	assert.ErrorIs(t, err, library.ErrNotFound)

	_, err = svc.Update(ctx, book.ID, stranger, library.BookPatch{Title: ptr("Stolen")})
	assert.ErrorIs(t, err, library.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, book.ID, stranger), library.ErrNotFound)

	updated, err := svc.Update(ctx, book.ID, owner, library.BookPatch{Status: ptr("READ"), Rating: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, store.StatusRead, updated.Status)
	assert.Equal(t, "Emma", updated.Title)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, book.ID, owner))
	list, err = svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}
