package authsdk

import (
	"time"

	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// Cookie names set by login and refresh.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// LoginRequest is the body of POST /v1/auth/login. The endpoint also accepts
// the same fields form-encoded.
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"correct horse battery staple"`
}

// RefreshRequest is the optional body of refresh and logout. The token may
// also come from the refresh cookie or a bearer header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// AccessToken is the JWT used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is only present on login, or on refresh when rotation is on
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in" example:"1800"`

	// RefreshExpiresIn is the lifetime in seconds of RefreshToken
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty" example:"604800"`
}

// MeResponse describes the caller of GET /v1/auth/me.
type MeResponse struct {
	Subject    string    `json:"subject" example:"alice"`
	IdentityID string    `json:"identity_id" example:"01J9ZQ4X7S3M6V2C8K5B1N0PQR"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the credential store status
	Database string `json:"database"`

	// Signer indicates the token signing status
	Signer string `json:"signer"`

	// Users is the number of stored credentials
	Users int64 `json:"users"`

	// Cache indicates the redis status, when redis is configured
	Cache string `json:"cache,omitempty"`
}

// JWKSResponse contains the JSON Web Key Set served at
// /.well-known/jwks.json. It is empty in HS256 mode.
type JWKSResponse jwtx.JWKS
