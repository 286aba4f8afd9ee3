package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nimbusvault/authcore/pkg/jwtx"
	"github.com/nimbusvault/authcore/pkg/slogx"
)

// DefaultAccessCookie is the cookie the gate falls back to when there is no
// bearer header.
const DefaultAccessCookie = "access_token"

// ErrNoToken is reported to the reject hook when a required route sees no
// credentials.
var ErrNoToken = errors.New("httpx: no access token")

type gateConfig struct {
	cookie   string
	required bool
	onReject func(*http.Request, error)
}

// GateOption configures AuthGate.
type GateOption func(*gateConfig)

// WithCookieName changes the fallback cookie. An empty name disables the
// cookie lookup.
func WithCookieName(name string) GateOption {
	return func(c *gateConfig) { c.cookie = name }
}

// WithRequired rejects requests that carry no token at all.
func WithRequired() GateOption {
	return func(c *gateConfig) { c.required = true }
}

// WithRejectHook is called for every rejection, before the response is
// written.
func WithRejectHook(fn func(*http.Request, error)) GateOption {
	return func(c *gateConfig) { c.onReject = fn }
}

// AuthGate verifies the caller's access token and attaches its claims to the
// request context. The token comes from the Authorization bearer header, or
// failing that the access cookie.
//
// No token: the request continues anonymously unless WithRequired is set.
// A token that fails verification always ends the request with 401; it is
// never downgraded to anonymous.
func AuthGate(v jwtx.Verifier, opts ...GateOption) Middleware {
	cfg := gateConfig{cookie: DefaultAccessCookie}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, found := extractToken(r, cfg.cookie)
			if !found {
				if cfg.required {
					cfg.reject(w, r, ErrNoToken)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw, jwtx.KindAccess)
			if err != nil {
				cfg.reject(w, r, err)
				return
			}

			ctx := slogx.With(WithClaims(r.Context(), claims), "sub", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous requests. Use it behind an optional
// AuthGate on the routes that need a caller.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ClaimsFromContext(r.Context()); !ok {
				WriteBearerChallenge(w, "", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RejectReason buckets a gate error for logs and metrics.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "missing"
	case errors.Is(err, jwtx.ErrExpired):
		return "expired"
	default:
		return "invalid"
	}
}

func (c *gateConfig) reject(w http.ResponseWriter, r *http.Request, err error) {
	reason := RejectReason(err)
	slogx.FromContext(r.Context()).Warn("auth gate rejected request", "reason", reason, "err", err)
	if c.onReject != nil {
		c.onReject(r, err)
	}

	switch reason {
	case "missing":
		WriteBearerChallenge(w, "", "")
	case "expired":
		WriteBearerChallenge(w, "invalid_token", "The access token expired")
	default:
		WriteBearerChallenge(w, "invalid_token", "The access token is invalid")
	}
}

// extractToken returns the candidate token and whether one was presented. A
// bearer header with an empty credential still counts as presented.
func extractToken(r *http.Request, cookie string) (string, bool) {
	if tok, ok := BearerToken(r); ok {
		return tok, true
	}
	if cookie == "" {
		return "", false
	}
	c, err := r.Cookie(cookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// BearerToken parses "Authorization: Bearer <token>". The scheme is case
// insensitive; other schemes are ignored.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, rest, _ := strings.Cut(authz, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
