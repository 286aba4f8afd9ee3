/*
Package authsdk is the Go client for the authcore service.

# SDKClient vs Session

SDKClient maps one method to one endpoint:

	client := authsdk.NewSDKClient("https://auth.example.com")

	tokens, err := client.Login(ctx, "alice", password)
	me, err := client.Me(ctx, tokens.AccessToken)
	fresh, err := client.Refresh(ctx, tokens.RefreshToken)
	err = client.Logout(ctx, tokens.RefreshToken)

Session keeps a token pair and refreshes the access token shortly before
it expires:

	session, err := client.LoginSession(ctx, "alice", password)
	me, err := session.Me(ctx)
	defer session.Logout(ctx)

# Verifying tokens in other services

Consumer services never call the auth service per request. They load the
public keys once and verify locally:

	keys := jwtx.NewKeySet()
	if err := client.FetchKeySet(ctx, keys); err != nil {
		return err
	}
	verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: "https://auth.example.com"})
	mux.Handle("/orders", httpx.AuthGate(verifier, httpx.WithRequired())(orders))

# Error Handling

Non-2xx responses come back as *APIError. Errors compare by code:

	_, err := client.Login(ctx, "alice", "wrong")
	switch {
	case errors.Is(err, authsdk.ErrInvalidCredentials):
		// fix credentials
	case errors.Is(err, authsdk.ErrRateLimited):
		var apiErr *authsdk.APIError
		errors.As(err, &apiErr)
		time.Sleep(apiErr.RetryAfter)
	}
*/
package authsdk
