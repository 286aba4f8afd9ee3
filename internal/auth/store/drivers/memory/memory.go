// Package memory is an in-process store for tests and single-node
// development. Nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/store"
)

type Store struct {
	mu          sync.RWMutex
	byID        map[string]domain.Credential
	byUsername  map[string]string // username -> identity id
	revocations map[string]time.Time
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		byID:        make(map[string]domain.Credential),
		byUsername:  make(map[string]string),
		revocations: make(map[string]time.Time),
	}
}

func (s *Store) Credentials() store.Credentials { return credentialsRepo{s} }
func (s *Store) Revocations() store.Revocations { return revocationsRepo{s} }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type credentialsRepo struct{ s *Store }

func (r credentialsRepo) LookupByUsername(ctx context.Context, username string) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byUsername[username]
	if !ok {
		return domain.Credential{}, store.ErrNotFound
	}
	return r.s.byID[id], nil
}

func (r credentialsRepo) LookupByID(ctx context.Context, identityID string) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.byID[identityID]
	if !ok {
		return domain.Credential{}, store.ErrNotFound
	}
	return c, nil
}

func (r credentialsRepo) Insert(ctx context.Context, c domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.byUsername[c.Username]; taken {
		return store.ErrAlreadyExists
	}
	if _, taken := r.s.byID[c.IdentityID]; taken {
		return store.ErrAlreadyExists
	}
	r.s.byID[c.IdentityID] = c
	r.s.byUsername[c.Username] = c.IdentityID
	return nil
}

func (r credentialsRepo) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.byID[identityID]
	if !ok {
		return store.ErrNotFound
	}
	c.PasswordHash = hash
	r.s.byID[identityID] = c
	return nil
}

func (r credentialsRepo) Delete(ctx context.Context, identityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.byID[identityID]
	if !ok {
		return store.ErrNotFound
	}
	delete(r.s.byID, identityID)
	delete(r.s.byUsername, c.Username)
	return nil
}

func (r credentialsRepo) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.byID)), nil
}

type revocationsRepo struct{ s *Store }

func (r revocationsRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.revocations[jti]; ok {
		return false, nil
	}
	r.s.revocations[jti] = expiresAt
	return true, nil
}

func (r revocationsRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.revocations[jti]
	return ok, nil
}

func (r revocationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for jti, exp := range r.s.revocations {
		if exp.Before(now) {
			delete(r.s.revocations, jti)
			n++
		}
	}
	return n, nil
}
