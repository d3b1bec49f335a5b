package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/dtclient/internal/auth"
	"github.com/fivetwenty-io/dtclient/internal/constants"
)

type cachedToken struct {
	AccessToken string    `yaml:"access_token"`
	ExpiresAt   time.Time `yaml:"expires_at"`
	SavedAt     time.Time `yaml:"saved_at"`
}

// TokenCache implements auth.TokenPersister over a YAML file keyed by
// service account key id.
type TokenCache struct {
	path  string
	mutex sync.Mutex
}

// NewTokenCache creates a token cache stored at path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Load returns the cached token for keyID, or nil when none is cached.
func (c *TokenCache) Load(keyID string) (*auth.Token, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tokens, err := c.read()
	if err != nil {
		return nil, err
	}

	cached, ok := tokens[keyID]
	if !ok {
		return nil, nil //nolint:nilnil // a missing entry is not an error
	}

	return &auth.Token{AccessToken: cached.AccessToken, TokenType: "Bearer", ExpiresAt: cached.ExpiresAt}, nil
}

// SaveToken implements auth.TokenPersister.
func (c *TokenCache) SaveToken(keyID string, token *auth.Token) error {
	if token == nil {
		return nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	tokens, err := c.read()
	if err != nil {
		return err
	}

	tokens[keyID] = cachedToken{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		SavedAt:     time.Now().UTC(),
	}

	return c.write(tokens)
}

func (c *TokenCache) read() (map[string]cachedToken, error) {
	tokens := map[string]cachedToken{}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return tokens, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}

	err = yaml.Unmarshal(data, &tokens)
	if err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}

	return tokens, nil
}

func (c *TokenCache) write(tokens map[string]cachedToken) error {
	err := os.MkdirAll(filepath.Dir(c.path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}

	data, err := yaml.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encoding token cache: %w", err)
	}

	err = os.WriteFile(c.path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}

	return nil
}
