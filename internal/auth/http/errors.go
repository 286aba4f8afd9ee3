package http

import (
	"errors"
	"net/http"

	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/httpx"
	"github.com/nimbusvault/authcore/pkg/slogx"
)

// writeServiceError maps service errors onto the wire. Only rate limiting
// and bad credentials carry detail; every token failure is the same 401.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		httpx.WriteTooManyRequests(w, rl.RetryAfter, rl.Limit, rl.Window)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrIdentityNotFound):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		authsdk.ErrTemporarilyUnavailable.WriteError(w)
	case errors.Is(err, service.ErrInvalidInput):
		authsdk.ErrInvalidRequest.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
