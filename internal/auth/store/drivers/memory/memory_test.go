package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/internal/auth/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func TestMemoryCredentials(t *testing.T) {
	ctx := context.Background()
	creds := memory.NewStore().Credentials()

	alice := domain.Credential{IdentityID: "id-1", Username: "alice", PasswordHash: "h"}
	require.NoError(t, creds.Insert(ctx, alice))
	require.ErrorIs(t, creds.Insert(ctx, domain.Credential{IdentityID: "id-2", Username: "alice"}), store.ErrAlreadyExists)

	got, err := creds.LookupByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	n, err := creds.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, creds.Delete(ctx, "id-1"))
	_, err = creds.LookupByID(ctx, "id-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// The username is free again.
	require.NoError(t, creds.Insert(ctx, domain.Credential{IdentityID: "id-3", Username: "alice"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = creds.LookupByUsername(cancelled, "alice")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	revs := memory.NewStore().Revocations()
	now := time.Now()

	added, err := revs.Revoke(ctx, "a", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, added)
	added, err = revs.Revoke(ctx, "a", now.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, added)
	added, err = revs.Revoke(ctx, "b", now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, added)

	n, err := revs.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	ok, err := revs.IsRevoked(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = revs.IsRevoked(ctx, "b")
	require.NoError(t, err)
	require.False(t, ok)
}
