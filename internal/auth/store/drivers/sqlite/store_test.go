package sqlite_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/internal/auth/store/drivers/sqlite"
	"github.com/nimbusvault/authcore/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	require.EqualValues(t, 2, version)
}

func TestSchemaVersionBeforeMigrations(t *testing.T) {
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	require.Zero(t, version)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	creds := newStore(t).Credentials()

	alice := domain.Credential{
		IdentityID:   idx.New().String(),
		Username:     "alice",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
	require.NoError(t, creds.Insert(ctx, alice))

	got, err := creds.LookupByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	got, err = creds.LookupByID(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.Equal(t, alice, got)

	_, err = creds.LookupByUsername(ctx, "bob")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = creds.LookupByID(ctx, idx.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := alice
	dup.IdentityID = idx.New().String()
	require.ErrorIs(t, creds.Insert(ctx, dup), store.ErrAlreadyExists)

	n, err := creds.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, creds.UpdatePasswordHash(ctx, alice.IdentityID, "new-hash"))
	got, err = creds.LookupByID(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.ErrorIs(t, creds.UpdatePasswordHash(ctx, "missing", "x"), store.ErrNotFound)

	require.NoError(t, creds.Delete(ctx, alice.IdentityID))
	require.ErrorIs(t, creds.Delete(ctx, alice.IdentityID), store.ErrNotFound)
	_, err = creds.LookupByUsername(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredentialsLookupHonoursDeadline(t *testing.T) {
	creds := newStore(t).Credentials()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := creds.LookupByUsername(ctx, "alice")
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestRevocations(t *testing.T) {
	ctx := context.Background()
	revs := newStore(t).Revocations()
	now := time.Unix(1_700_000_000, 0)

	revoked, err := revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	added, err := revs.Revoke(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, added)
	added, err = revs.Revoke(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err, "revoking twice is fine")
	require.False(t, added, "only the first revoke claims the token")
	added, err = revs.Revoke(ctx, "jti-2", now.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, added)

	revoked, err = revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	n, err := revs.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	revoked, err = revs.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, revoked)
	revoked, err = revs.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestConcurrentInsertSameUsername(t *testing.T) {
	ctx := context.Background()
	creds := newStore(t).Credentials()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := creds.Insert(ctx, domain.Credential{
				IdentityID:   idx.New().String(),
				Username:     "carol",
				PasswordHash: "h",
				CreatedAt:    time.Now(),
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, success)
}
