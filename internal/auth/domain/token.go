package domain

import "time"

// TokenPair is what login and refresh hand back. RefreshToken is empty on a
// refresh without rotation.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
