//go:build e2e

package auth_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

func TestLivezEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
}

func TestReadyzEndpoint(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)

	health, err := client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
}

// TestJWKSVerification verifies a service token the way a consumer service
// would, with only the published key set.
func TestJWKSVerification(t *testing.T) {
	_, client := withAlice(t)
	ctx := t.Context()

	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, jwtx.AlgorithmEdDSA, jwks.Keys[0].Alg)

	keys := jwtx.NewKeySet()
	require.NoError(t, client.FetchKeySet(ctx, keys))
	verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: testIssuer})

	login, err := client.Login(ctx, aliceUsername, alicePassword)
	require.NoError(t, err)

	claims, err := verifier.Verify(login.AccessToken, jwtx.KindAccess)
	require.NoError(t, err)
	require.Equal(t, aliceUsername, claims.Subject)

	_, err = verifier.Verify(login.RefreshToken, jwtx.KindAccess)
	require.ErrorIs(t, err, jwtx.ErrKindMismatch)
}

// TestAuthctlVerify runs the CLI verifier against the service's own JWKS.
func TestAuthctlVerify(t *testing.T) {
	c, client := withAlice(t)

	login, err := client.Login(t.Context(), aliceUsername, alicePassword)
	require.NoError(t, err)

	out := c.authctl(t, fmt.Sprintf("authctl verify --url http://localhost:8080 --issuer %s --kind access '%s'", testIssuer, login.AccessToken))
	require.Contains(t, out, `"sub": "alice"`)
}
