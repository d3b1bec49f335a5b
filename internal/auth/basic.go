package auth

import (
	"context"
	"time"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// BasicCredential authenticates with a service account key id and secret
// sent as HTTP basic auth. Its token is derived locally and never expires.
type BasicCredential struct {
	keyID  string
	secret string
	store  *TokenStore
}

// NewBasicCredential validates the key pair and derives the token.
func NewBasicCredential(keyID, secret string) (*BasicCredential, error) {
	err := requireFields(map[string]string{"key_id": keyID, "secret": secret})
	if err != nil {
		return nil, err
	}

	cred := &BasicCredential{keyID: keyID, secret: secret, store: NewTokenStore()}
	cred.store.Set(cred.derive())

	return cred, nil
}

func (c *BasicCredential) derive() *Token {
	return &Token{
		AccessToken: dt.Base64Encode(c.keyID + ":" + c.secret),
		TokenType:   "Basic",
	}
}

// GetToken returns the Authorization header value.
func (c *BasicCredential) GetToken(ctx context.Context) (string, error) {
	token := c.store.Get()
	if token == nil {
		token = c.derive()
		c.store.Set(token)
	}

	return token.HeaderValue(), nil
}

// RefreshToken re-derives the token from the key pair. No network call is made.
func (c *BasicCredential) RefreshToken(ctx context.Context) error {
	c.store.Set(c.derive())

	return nil
}

// SetToken replaces the cached header value.
func (c *BasicCredential) SetToken(token string, expiresAt time.Time) {
	c.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// HasExpired always reports false.
func (c *BasicCredential) HasExpired() bool {
	return false
}

// requireFields returns a TypeError naming the first empty field, in a
// stable order.
func requireFields(fields map[string]string) error {
	for _, name := range []string{"key_id", "secret", "email"} {
		value, ok := fields[name]
		if ok && value == "" {
			return dt.NewTypeError("credential field %s must be a non-empty string", name)
		}
	}

	return nil
}
