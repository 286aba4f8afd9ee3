package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh.
type RefreshHandler struct {
	AuthService *service.AuthService
	Cookies     CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Refresh the access token
//	@Description	Mints a new access token from a refresh token taken from the Authorization header, the JSON or form body, or the refresh_token cookie, in that order.
//	@Description	A new refresh token is only returned when the server rotates refresh tokens.
//	@Tags			Auth
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400		{object}	httpx.ErrorBody			"invalid_request"
//	@Failure		401		{object}	httpx.ErrorBody			"invalid_token"
//	@Failure		503		{object}	httpx.ErrorBody			"temporarily_unavailable"
//	@Router			/v1/auth/refresh [post].
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}
	if token == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "refresh token required").WriteError(w)
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeTokens(w, h.Cookies, pair)
}

// LogoutHandler serves POST /v1/auth/logout.
type LogoutHandler struct {
	AuthService *service.AuthService
	Cookies     CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		Log out
//	@Description	Revokes the refresh token and clears the token cookies. Unknown or malformed tokens also get 204.
//	@Tags			Auth
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Param			request	body	authsdk.RefreshRequest	false	"Refresh token"
//	@Success		204
//	@Failure		503	{object}	httpx.ErrorBody	"temporarily_unavailable"
//	@Router			/v1/auth/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := refreshTokenFrom(w, r)
	if !ok {
		return
	}

	if token != "" {
		err := h.AuthService.Logout(r.Context(), token)
		switch {
		case err == nil, errors.Is(err, service.ErrTokenInvalid):
		case errors.Is(err, service.ErrUpstreamUnavailable):
			authsdk.ErrTemporarilyUnavailable.WriteError(w)
			return
		default:
			slogx.FromContext(r.Context()).Error("logout failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}
	}

	h.Cookies.clear(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// refreshTokenFrom finds the refresh token: bearer header, then body, then
// cookie. It returns false after writing a 400 for an unreadable body.
func refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	if tok, ok := httpx.BearerToken(r); ok {
		return tok, true
	}

	var req authsdk.RefreshRequest
	if !decodeBody(w, r, &req, func(form map[string][]string) {
		req.RefreshToken = first(form["refresh_token"])
	}) {
		return "", false
	}
	if tok := strings.TrimSpace(req.RefreshToken); tok != "" {
		return tok, true
	}

	if c, err := r.Cookie(authsdk.RefreshTokenCookie); err == nil {
		return strings.TrimSpace(c.Value), true
	}
	return "", true
}
