package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BuntStore {
	t.Helper()

	s, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestBuntStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "discord:123", `{"accessToken":"a"}`, 0))

	got, err := s.Get(ctx, "discord:123")
	require.NoError(t, err)
	require.Equal(t, `{"accessToken":"a"}`, got)
}

func TestBuntStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "discord:nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuntStore_Overwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "github:123", "old-token", 0))
	require.NoError(t, s.Put(ctx, "github:123", "new-token", 0))

	got, err := s.Get(ctx, "github:123")
	require.NoError(t, err)
	require.Equal(t, "new-token", got)
}

func TestBuntStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state:abc", "123", 0))
	require.NoError(t, s.Delete(ctx, "state:abc"))

	_, err := s.Get(ctx, "state:abc")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error
	require.NoError(t, s.Delete(ctx, "state:abc"))
}

func TestBuntStore_TTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "state:abc", "123", 50*time.Millisecond))

	got, err := s.Get(ctx, "state:abc")
	require.NoError(t, err)
	require.Equal(t, "123", got)

	time.Sleep(100 * time.Millisecond)

	_, err = s.Get(ctx, "state:abc")
	require.ErrorIs(t, err, ErrNotFound, "expired key must never return a stale value")
}
