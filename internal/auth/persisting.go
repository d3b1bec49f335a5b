package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// TokenPersister saves refreshed tokens so a later process can reuse them.
type TokenPersister interface {
	SaveToken(keyID string, token *Token) error
}

// cachingCredential is a credential that exposes its cached token.
type cachingCredential interface {
	dt.Credential
	CurrentToken() *Token
}

// PersistingCredential wraps an OAuth credential and persists every token it
// obtains. Persistence failures are logged and never fail the call.
type PersistingCredential struct {
	inner     cachingCredential
	persister TokenPersister
	keyID     string
	logger    dt.Logger

	mu   sync.Mutex
	last Token
}

// NewPersistingCredential wraps inner. The token inner currently holds is
// treated as already persisted.
func NewPersistingCredential(inner *OAuthCredential, persister TokenPersister, keyID string, logger dt.Logger) *PersistingCredential {
	if logger == nil {
		logger = dt.NopLogger{}
	}

	p := &PersistingCredential{
		inner:     inner,
		persister: persister,
		keyID:     keyID,
		logger:    logger,
	}

	if current := inner.CurrentToken(); current != nil {
		p.last = *current
	}

	return p
}

// GetToken returns a valid token, persisting it if it changed.
func (p *PersistingCredential) GetToken(ctx context.Context) (string, error) {
	token, err := p.inner.GetToken(ctx)
	if err != nil {
		return "", err
	}

	p.persistIfChanged()

	return token, nil
}

// RefreshToken forces a refresh and persists the result.
func (p *PersistingCredential) RefreshToken(ctx context.Context) error {
	err := p.inner.RefreshToken(ctx)
	if err != nil {
		return err
	}

	p.persistIfChanged()

	return nil
}

// SetToken manually sets the access token without persisting it.
func (p *PersistingCredential) SetToken(token string, expiresAt time.Time) {
	p.inner.SetToken(token, expiresAt)

	p.mu.Lock()
	defer p.mu.Unlock()

	if current := p.inner.CurrentToken(); current != nil {
		p.last = *current
	}
}

// TokenExpiry returns the current token's expiration time.
func (p *PersistingCredential) TokenExpiry() time.Time {
	current := p.inner.CurrentToken()
	if current == nil {
		return time.Time{}
	}

	return current.ExpiresAt
}

func (p *PersistingCredential) persistIfChanged() {
	current := p.inner.CurrentToken()
	if current == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if current.AccessToken == p.last.AccessToken && current.ExpiresAt.Equal(p.last.ExpiresAt) {
		return
	}

	err := p.persist(current)
	if err != nil {
		p.logger.Warn("Failed to persist refreshed token", map[string]interface{}{
			"key_id": p.keyID,
			"error":  err.Error(),
		})

		return
	}

	p.last = *current
}

func (p *PersistingCredential) persist(token *Token) error {
	if p.persister == nil {
		return ErrNoTokenPersister
	}

	err := p.persister.SaveToken(p.keyID, token)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
