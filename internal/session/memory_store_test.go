package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/JeanneIrsaeva/library-tracker/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := session.NewMemoryStore()

	require.NoError(t, s.Save(ctx, session.RefreshSession{TokenID: "t1", UserID: 4, ExpiresAt: time.Now().Add(time.Hour)}))

	got, err := s.Consume(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.UserID)

	_, err = s.Consume(ctx, "t1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStoreExpiredAndRevoked(t *testing.T) {
	ctx := context.Background()
	s := session.NewMemoryStore()

	require.NoError(t, s.Save(ctx, session.RefreshSession{TokenID: "old", UserID: 1, ExpiresAt: time.Now().Add(-time.Second)}))
	_, err := s.Consume(ctx, "old")
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, s.Save(ctx, session.RefreshSession{TokenID: "gone", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.Revoke(ctx, "gone"))
	_, err = s.Consume(ctx, "gone")
	assert.ErrorIs(t, err, session.ErrNotFound)

	assert.Error(t, s.Save(ctx, session.RefreshSession{UserID: 1}))
}
