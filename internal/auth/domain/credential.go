package domain

import "time"

// Credential is a stored login. IdentityID is a ULID assigned at insert and
// never changes; Username is unique.
type Credential struct {
	IdentityID   string
	Username     string
	PasswordHash string // bcrypt or argon2id encoded
	CreatedAt    time.Time
}
