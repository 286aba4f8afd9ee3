package httpx

import (
	"context"

	"github.com/nimbusvault/authcore/pkg/jwtx"
)

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

// WithClaims attaches verified claims to ctx.
func WithClaims(ctx context.Context, c jwtx.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// ClaimsFromContext returns the claims the Auth Gate attached, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return c, ok
}

// IdentityFromContext returns the caller's identity. ok is false for
// anonymous requests.
func IdentityFromContext(ctx context.Context) (jwtx.Identity, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return jwtx.Identity{}, false
	}
	return c.Identity(), true
}
