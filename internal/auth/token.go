package auth

import (
	"sync"
	"time"
)

// expiryBuffer is how early a token is considered stale.
const expiryBuffer = 30 * time.Second

// Token is a cached Authorization credential. TokenType is the header
// scheme, "Basic" or "Bearer".
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token can be used for at least another 30 seconds.
// A zero ExpiresAt never expires.
func (t *Token) Valid() bool {
	return t.ValidAt(time.Now())
}

// ValidAt is Valid measured against now.
func (t *Token) ValidAt(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return now.Add(expiryBuffer).Before(t.ExpiresAt)
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return true
	}

	if t.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(t.ExpiresAt)
}

// HeaderValue returns the Authorization header value for the token.
func (t *Token) HeaderValue() string {
	if t.TokenType == "" {
		return t.AccessToken
	}

	return t.TokenType + " " + t.AccessToken
}

// TokenStore provides thread-safe token storage.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates a new token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get retrieves the current token.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set stores a new token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
