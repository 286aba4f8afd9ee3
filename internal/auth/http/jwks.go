package http

import (
	"net/http"

	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// JWKSHandler exposes the public keys consumers verify access tokens with.
// The set is empty when tokens are signed with a shared secret.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access and refresh tokens. Keys are identified by their RFC 7638 thumbprint.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
