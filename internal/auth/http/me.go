package http

import (
	"net/http"

	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
)

// MeHandler returns the identity attached by the auth gate.
//
//	@Summary		Current identity
//	@Description	Returns the subject and identity id of the access token.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	httpx.ErrorBody	"invalid_token"
//	@Router			/v1/auth/me [get].
func MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteBearerChallenge(w, "", "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		Subject:    claims.Subject,
		IdentityID: claims.IdentityID,
		ExpiresAt:  claims.ExpiresAtTime().UTC(),
	})
}
