package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
)

// maxBodyBytes caps login, refresh and logout bodies.
const maxBodyBytes = 64 << 10

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	AuthService *service.AuthService
	Cookies     CookieConfig
	ClientKey   httpx.KeyExtractor
}

// ServeHTTP godoc
//
//	@Summary		Log in
//	@Description	Exchanges a username and password for an access and refresh token. Both are also set as HttpOnly cookies.
//	@Description	Attempts are limited per client address; the sixth attempt within a minute is rejected before the credentials are checked.
//	@Tags			Auth
//	@Accept			json
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400		{object}	httpx.ErrorBody			"invalid_request"
//	@Failure		401		{object}	httpx.ErrorBody			"invalid_credentials, also for a blank username or password"
//	@Failure		429		{object}	httpx.ErrorBody			"rate_limit_exceeded"
//	@Failure		503		{object}	httpx.ErrorBody			"temporarily_unavailable"
//	@Header			429		{integer}	Retry-After				"seconds until the next attempt is allowed"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req, func(form map[string][]string) {
		req.Username = first(form["username"])
		req.Password = first(form["password"])
	}) {
		return
	}

	// Blank credentials go through Login like any other attempt so they
	// count against the client's limit.
	pair, err := h.AuthService.Login(r.Context(), h.ClientKey(r), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeTokens(w, h.Cookies, pair)
}

func writeTokens(w http.ResponseWriter, cookies CookieConfig, pair domain.TokenPair) {
	now := time.Now()
	cookies.setTokens(w, pair, now)

	resp := authsdk.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   secondsUntil(pair.AccessExpiresAt, now),
	}
	if pair.RefreshToken != "" {
		resp.RefreshToken = pair.RefreshToken
		resp.RefreshExpiresIn = secondsUntil(pair.RefreshExpiresAt, now)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// decodeBody reads a JSON body into v, or hands a parsed form to fromForm.
// An empty body is accepted. It writes a 400 and returns false when the body
// cannot be read.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, fromForm func(map[string][]string)) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid content type").WriteError(w)
			return false
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json", "":
		if r.ContentLength == 0 {
			return true
		}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return true
			}
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid JSON body").WriteError(w)
			return false
		}
		return true
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "invalid form body").WriteError(w)
			return false
		}
		fromForm(r.PostForm)
		return true
	default:
		authsdk.NewAPIError(http.StatusUnsupportedMediaType, authsdk.ErrorCodeInvalidRequest, "unsupported content type").WriteError(w)
		return false
	}
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
