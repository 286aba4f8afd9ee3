package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// expiryBuffer refreshes a little before the server would reject the token.
const expiryBuffer = 30 * time.Second

// Session holds a token pair and refreshes the access token when it is
// about to expire. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// LoginSession logs in and wraps the resulting tokens in a Session.
func (c *SDKClient) LoginSession(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s := &Session{client: c}
	s.apply(tokenResp)
	return s, nil
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresIn int) *Session {
	s := &Session{client: c}
	s.apply(&TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: expiresIn})
	return s
}

// apply stores a token response. A refresh without rotation returns no
// refresh token, so the current one is kept. Callers hold mu or own s.
func (s *Session) apply(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		s.refreshToken = tokenResp.RefreshToken
	}
	s.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expiryBuffer)
}

// AccessToken returns a valid access token, refreshing it if needed.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if s.refreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.apply(tokenResp)
	return s.accessToken, nil
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Me returns the session's identity.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Me(ctx, token)
}

// Logout revokes the refresh token and clears the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return errors.New("no refresh token to revoke")
	}
	if err := s.client.Logout(ctx, s.refreshToken); err != nil {
		return err
	}
	s.accessToken, s.refreshToken, s.expiresAt = "", "", time.Time{}
	return nil
}
