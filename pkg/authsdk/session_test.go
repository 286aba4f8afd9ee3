package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestSessionRefreshesExpiredToken(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		// Already inside the expiry buffer, so the first use refreshes.
		_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{
			AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", ExpiresIn: 10,
		})
	})
	mux.HandleFunc("POST /v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "r1", req.RefreshToken)
		refreshes.Add(1)
		_ = json.NewEncoder(w).Encode(authsdk.TokenResponse{AccessToken: "a2", TokenType: "Bearer", ExpiresIn: 1800})
	})
	mux.HandleFunc("POST /v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := authsdk.NewSDKClient(srv.URL + "/")
	session, err := client.LoginSession(ctx, "alice", "pw")
	require.NoError(t, err)

	tok, err := session.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "a2", tok)
	require.Equal(t, "r1", session.RefreshToken(), "refresh without rotation keeps the old refresh token")

	tok, err = session.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "a2", tok)
	require.Equal(t, int32(1), refreshes.Load())

	require.NoError(t, session.Logout(ctx))
	require.Empty(t, session.RefreshToken())
	require.Error(t, session.Logout(ctx))
}
