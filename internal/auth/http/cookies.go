package http

import (
	"net/http"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/pkg/authsdk"
)

// refreshCookiePath keeps the refresh token off every request except the
// auth endpoints that consume it.
const refreshCookiePath = "/v1/auth"

// CookieConfig controls the token cookies set by login and refresh.
type CookieConfig struct {
	// Secure should be on whenever the service sits behind TLS.
	Secure bool
	Domain string
}

func (c CookieConfig) setTokens(w http.ResponseWriter, pair domain.TokenPair, now time.Time) {
	http.SetCookie(w, c.cookie(authsdk.AccessTokenCookie, pair.AccessToken, "/", secondsUntil(pair.AccessExpiresAt, now)))
	if pair.RefreshToken != "" {
		http.SetCookie(w, c.cookie(authsdk.RefreshTokenCookie, pair.RefreshToken, refreshCookiePath, secondsUntil(pair.RefreshExpiresAt, now)))
	}
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(authsdk.AccessTokenCookie, "", "/", -1))
	http.SetCookie(w, c.cookie(authsdk.RefreshTokenCookie, "", refreshCookiePath, -1))
}

func (c CookieConfig) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func secondsUntil(t, now time.Time) int {
	return max(int(t.Sub(now).Round(time.Second)/time.Second), 1)
}
