package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/idx"
	"github.com/nimbusvault/authcore/pkg/slogx"
)

// Username and password bounds for Register and SetPassword.
const (
	MaxUsernameLength = 64
	MinPasswordLength = 8
)

// Register creates a credential with a fresh identity id.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.Credential, error) {
	log := slogx.FromContext(ctx)

	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return domain.Credential{}, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return domain.Credential{}, err
	}

	cred := domain.Credential{
		IdentityID:   idx.NewAt(s.now().UTC()).String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()
	if err := s.Credentials.Insert(lookupCtx, cred); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			log.Warn("registration with taken username", slog.String("username", username))
			return domain.Credential{}, ErrUsernameTaken
		}
		log.Error("credential insert failed", slog.Any("error", err))
		return domain.Credential{}, upstream(err)
	}

	log.Info("identity registered",
		slog.String("username", cred.Username),
		slog.String("identity_id", cred.IdentityID),
	)
	return cred, nil
}

// SetPassword replaces the password of an existing identity. Tokens already
// issued stay valid until they expire or are revoked.
func (s *AuthService) SetPassword(ctx context.Context, identityID, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()
	if err := s.Credentials.UpdatePasswordHash(lookupCtx, identityID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return upstream(err)
	}
	slogx.FromContext(ctx).Info("password changed", slog.String("identity_id", identityID))
	return nil
}

// DeleteUser removes the credential for username. Refresh tokens issued to
// the identity stop working at their next use because the identity no longer
// resolves; access tokens run until they expire.
func (s *AuthService) DeleteUser(ctx context.Context, username string) (domain.Credential, error) {
	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	cred, err := s.Credentials.LookupByUsername(lookupCtx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Credential{}, ErrIdentityNotFound
	}
	if err != nil {
		return domain.Credential{}, upstream(err)
	}
	if err := s.Credentials.Delete(lookupCtx, cred.IdentityID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Credential{}, ErrIdentityNotFound
		}
		return domain.Credential{}, upstream(err)
	}
	slogx.FromContext(ctx).Info("identity deleted",
		slog.String("username", cred.Username),
		slog.String("identity_id", cred.IdentityID),
	)
	return cred, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", invalidInput("password too short")
	}
	hash, err := s.Hasher.Hash(password)
	if errors.Is(err, cryptox.ErrPasswordTooLong) {
		return "", invalidInput("password too long")
	}
	return hash, err
}

func validateUsername(username string) error {
	if username == "" {
		return invalidInput("username required")
	}
	if len(username) > MaxUsernameLength {
		return invalidInput("username too long")
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return invalidInput("username contains whitespace or control characters")
		}
	}
	return nil
}
