package authsdk

import (
	"context"
	"net/http"

	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// FetchKeySet replaces the contents of keys with the service's JWKS. Consumer
// services call this at startup, and periodically if they want to pick up
// new keys, then verify with jwtx.NewVerifier(keys, ...).
func (c *SDKClient) FetchKeySet(ctx context.Context, keys *jwtx.KeySet) error {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return err
	}
	return keys.ResetFromJWKS(jwtx.JWKS(*jwks))
}
