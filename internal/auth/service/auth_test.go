package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/internal/auth/store/drivers/memory"
	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
	"github.com/nimbusvault/authcore/pkg/ratelimit"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	client   = "203.0.113.7"
	alice    = "alice"
	alicePwd = "wonderland-42"
)

// countingCredentials counts lookups and can simulate a hung backend.
type countingCredentials struct {
	store.Credentials
	lookups atomic.Int32
	hang    atomic.Bool
}

func (c *countingCredentials) LookupByUsername(ctx context.Context, username string) (domain.Credential, error) {
	c.lookups.Add(1)
	if c.hang.Load() {
		<-ctx.Done()
		return domain.Credential{}, ctx.Err()
	}
	return c.Credentials.LookupByUsername(ctx, username)
}

func (c *countingCredentials) LookupByID(ctx context.Context, identityID string) (domain.Credential, error) {
	c.lookups.Add(1)
	if c.hang.Load() {
		<-ctx.Done()
		return domain.Credential{}, ctx.Err()
	}
	return c.Credentials.LookupByID(ctx, identityID)
}

// gatedRevocations holds IsRevoked until n callers are inside it, so they
// all see the token as live before any of them revokes it.
type gatedRevocations struct {
	store.Revocations
	gate sync.WaitGroup
}

func newGatedRevocations(inner store.Revocations, n int) *gatedRevocations {
	g := &gatedRevocations{Revocations: inner}
	g.gate.Add(n)
	return g
}

func (g *gatedRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := g.Revocations.IsRevoked(ctx, jti)
	g.gate.Done()
	g.gate.Wait()
	return revoked, err
}

type recorder struct {
	mu                sync.Mutex
	logins, refreshes []string
}

func (r *recorder) ObserveLogin(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, result)
}

func (r *recorder) ObserveRefresh(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes = append(r.refreshes, result)
}

type harness struct {
	svc      *service.AuthService
	creds    *countingCredentials
	verifier *jwtx.TokenVerifier
	metrics  *recorder
	windows  *ratelimit.MemoryStore
	now      time.Time
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{now: time.Unix(1_750_000_000, 0), metrics: &recorder{}}
	clock := func() time.Time { return h.now }

	signer, err := jwtx.NewEphemeralSigner(jwtx.AlgorithmEdDSA)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifierForSigner(signer, jwtx.VerifyOptions{Issuer: "authcore-test", Now: clock})
	require.NoError(t, err)
	issuer := jwtx.NewIssuer(signer, "authcore-test")
	issuer.Now = clock

	h.windows = ratelimit.NewMemoryStore()
	limiter := ratelimit.New(h.windows, 5, time.Minute)
	limiter.Now = clock

	st := memory.NewStore()
	h.creds = &countingCredentials{Credentials: st.Credentials()}
	h.verifier = verifier
	h.svc = &service.AuthService{
		Credentials: h.creds,
		Revocations: st.Revocations(),
		Hasher:      cryptox.NewBcryptHasher(cryptox.WithCost(bcrypt.MinCost)),
		Limiter:     limiter,
		Issuer:      issuer,
		Verifier:    verifier,
		Metrics:     h.metrics,
		Now:         clock,
	}
	return h
}

func (h *harness) register(t *testing.T, username, password string) domain.Credential {
	t.Helper()
	cred, err := h.svc.Register(context.Background(), username, password)
	require.NoError(t, err)
	return cred
}

func TestLoginAlice(t *testing.T) {
	h := newHarness(t)
	cred := h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, h.now.Add(30*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, h.now.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	claims, err := h.verifier.Verify(pair.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, alice, claims.Subject)
	require.Equal(t, cred.IdentityID, claims.IdentityID)

	_, err = h.verifier.Verify(pair.RefreshToken, jwtx.KindAccess)
	require.ErrorIs(t, err, jwtx.ErrKindMismatch)

	_, err = h.svc.Login(ctx, client, alice, "wrong-password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, client, "bob", alicePwd)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, client, "", "")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	require.Equal(t, []string{"success", "invalid", "invalid", "invalid"}, h.metrics.logins)
}

func TestLoginRateLimitedBeforeLookup(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.svc.Login(ctx, client, alice, "nope-nope-nope")
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
	}
	require.Equal(t, int32(5), h.creds.lookups.Load())

	// Even the right password is refused, and the store is not consulted.
	_, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.ErrorIs(t, err, service.ErrRateLimited)
	require.False(t, errors.Is(err, service.ErrInvalidCredentials))
	var rl *service.RateLimitError
	require.ErrorAs(t, err, &rl)
	require.Equal(t, time.Minute, rl.RetryAfter)
	require.Equal(t, int32(5), h.creds.lookups.Load())

	// Another client is unaffected.
	_, err = h.svc.Login(ctx, "198.51.100.1", alice, alicePwd)
	require.NoError(t, err)

	h.advance(time.Minute + time.Second)
	_, err = h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	h.advance(time.Hour)
	refreshed, err := h.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Empty(t, refreshed.RefreshToken)
	claims, err := h.verifier.Verify(refreshed.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, alice, claims.Subject)

	// Without rotation the same refresh token keeps working.
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, err = h.svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	_, err = h.svc.Refresh(ctx, "not-a-token")
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	h.advance(7 * 24 * time.Hour)
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenExpired)

	require.Equal(t, []string{"success", "success", "invalid", "invalid", "expired"}, h.metrics.refreshes)
}

func TestRefreshRotation(t *testing.T) {
	h := newHarness(t)
	h.svc.RotateRefresh = true
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	rotated, err := h.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	_, err = h.svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRotationConcurrentReplay(t *testing.T) {
	h := newHarness(t)
	h.svc.RotateRefresh = true
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	const callers = 2
	h.svc.Revocations = newGatedRevocations(h.svc.Revocations, callers)

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = h.svc.Refresh(ctx, pair.RefreshToken)
		}()
	}
	wg.Wait()

	var ok, replayed int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, service.ErrTokenInvalid):
			replayed++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	require.Equal(t, 1, ok, "exactly one refresh may rotate the token")
	require.Equal(t, 1, replayed)
	require.ElementsMatch(t, []string{"success", "invalid"}, h.metrics.refreshes)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	require.ErrorIs(t, h.svc.Logout(ctx, "garbage"), service.ErrTokenInvalid)
	require.ErrorIs(t, h.svc.Logout(ctx, pair.AccessToken), service.ErrTokenInvalid)

	h.advance(8 * 24 * time.Hour)
	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))
}

func TestRefreshDeletedIdentity(t *testing.T) {
	h := newHarness(t)
	cred := h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	require.NoError(t, h.creds.Delete(ctx, cred.IdentityID))
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrIdentityNotFound)

	// A new account under the same name is a different identity.
	h.advance(time.Millisecond)
	h.register(t, alice, "another-password")
	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrIdentityNotFound)
}

func TestUpstreamTimeout(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	h.svc.LookupTimeout = 20 * time.Millisecond
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	h.creds.hang.Store(true)

	_, err = h.svc.Login(ctx, client, alice, alicePwd)
	require.ErrorIs(t, err, service.ErrUpstreamUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, service.ErrInvalidCredentials))

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUpstreamUnavailable)
}

type failingWindows struct{}

func (failingWindows) Hit(context.Context, string, time.Time, time.Duration, int) (ratelimit.Hit, error) {
	return ratelimit.Hit{}, errors.New("connection refused")
}

func TestLoginLimiterStoreDown(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	h.svc.Limiter = ratelimit.New(failingWindows{}, 5, time.Minute)

	_, err := h.svc.Login(context.Background(), client, alice, alicePwd)
	require.ErrorIs(t, err, service.ErrUpstreamUnavailable)
	require.Zero(t, h.creds.lookups.Load())
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "ok", username: "carol", password: "long-enough"},
		{name: "trimmed", username: "  dave ", password: "long-enough"},
		{name: "empty username", username: " ", password: "long-enough", wantErr: service.ErrInvalidInput},
		{name: "space in username", username: "a b", password: "long-enough", wantErr: service.ErrInvalidInput},
		{name: "short password", username: "erin", password: "short", wantErr: service.ErrInvalidInput},
		{name: "long password", username: "frank", password: string(make([]byte, 73)), wantErr: service.ErrInvalidInput},
		{name: "taken", username: alice, password: "long-enough", wantErr: service.ErrUsernameTaken},
	}

	h := newHarness(t)
	h.register(t, alice, alicePwd)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := h.svc.Register(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, cred.IdentityID)
			require.NotContains(t, cred.Username, " ")
			require.NotEqual(t, tt.password, cred.PasswordHash)
		})
	}
}

func TestSetPassword(t *testing.T) {
	h := newHarness(t)
	cred := h.register(t, alice, alicePwd)
	ctx := context.Background()

	require.NoError(t, h.svc.SetPassword(ctx, cred.IdentityID, "brand-new-secret"))
	_, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = h.svc.Login(ctx, client, alice, "brand-new-secret")
	require.NoError(t, err)

	require.ErrorIs(t, h.svc.SetPassword(ctx, "missing", "brand-new-secret"), service.ErrIdentityNotFound)
	require.ErrorIs(t, h.svc.SetPassword(ctx, cred.IdentityID, "x"), service.ErrInvalidInput)
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t)
	cred := h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)

	deleted, err := h.svc.DeleteUser(ctx, " alice ")
	require.NoError(t, err)
	require.Equal(t, cred.IdentityID, deleted.IdentityID)

	_, err = h.svc.DeleteUser(ctx, alice)
	require.ErrorIs(t, err, service.ErrIdentityNotFound)

	_, err = h.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrIdentityNotFound)
	_, err = h.svc.Login(ctx, client, alice, alicePwd)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestHousekeepingCleanup(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice, alicePwd)
	ctx := context.Background()

	pair, err := h.svc.Login(ctx, client, alice, alicePwd)
	require.NoError(t, err)
	require.NoError(t, h.svc.Logout(ctx, pair.RefreshToken))
	require.Equal(t, 1, h.windows.Len())

	hk := service.NewHousekeepingService(h.svc.Revocations, h.windows, time.Minute, nil, time.Hour)
	hk.Now = func() time.Time { return h.now.Add(8 * 24 * time.Hour) }
	hk.Cleanup(ctx)

	require.Zero(t, h.windows.Len())
	revoked, err := h.svc.Revocations.IsRevoked(ctx, mustJTI(t, h, pair.RefreshToken))
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestHousekeepingStartStop(t *testing.T) {
	hk := service.NewHousekeepingService(memory.NewStore().Revocations(), ratelimit.NewMemoryStore(), time.Minute, nil, 0)
	require.Equal(t, time.Hour, hk.Interval)
	hk.Start()
	hk.Stop()
}

func mustJTI(t *testing.T, h *harness, token string) string {
	t.Helper()
	claims, err := h.verifier.Verify(token, jwtx.KindAny)
	require.NoError(t, err)
	return claims.ID
}
