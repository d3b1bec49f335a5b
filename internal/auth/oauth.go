package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"

	dthttp "github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime  = time.Hour
)

// FormPoster sends an unauthenticated form POST and returns the response
// body. *dthttp.Client satisfies it, so the exchange follows the same
// classification and retry rules as every other call.
type FormPoster interface {
	PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error)
}

// OAuthOption configures an OAuthCredential.
type OAuthOption func(*OAuthCredential)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) OAuthOption {
	return func(c *OAuthCredential) {
		if tokenURL != "" {
			c.tokenURL = tokenURL
		}
	}
}

// WithFormPoster sets the transport used for the exchange.
func WithFormPoster(poster FormPoster) OAuthOption {
	return func(c *OAuthCredential) {
		c.poster = poster
	}
}

// WithLogger sets the logger.
func WithLogger(logger dt.Logger) OAuthOption {
	return func(c *OAuthCredential) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInitialToken seeds the cache, for example from a persisted token. The
// construction-time exchange is skipped while the seeded token is valid.
func WithInitialToken(token string, expiresAt time.Time) OAuthOption {
	return func(c *OAuthCredential) {
		if token != "" {
			c.store.Set(&Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt})
		}
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) OAuthOption {
	return func(c *OAuthCredential) {
		c.now = now
	}
}

// OAuthCredential exchanges a signed service account assertion for a short
// lived bearer token and caches it until expiry.
type OAuthCredential struct {
	keyID    string
	secret   string
	email    string
	tokenURL string

	poster FormPoster
	logger dt.Logger
	now    func() time.Time

	store *TokenStore
	group singleflight.Group
}

// NewOAuthCredential validates the service account fields, then performs the
// first exchange so that bad credentials fail at construction.
func NewOAuthCredential(ctx context.Context, keyID, secret, email string, opts ...OAuthOption) (*OAuthCredential, error) {
	err := requireFields(map[string]string{"key_id": keyID, "secret": secret, "email": email})
	if err != nil {
		return nil, err
	}

	cred := &OAuthCredential{
		keyID:    keyID,
		secret:   secret,
		email:    email,
		tokenURL: dt.DefaultAuthURL,
		logger:   dt.NopLogger{},
		now:      time.Now,
		store:    NewTokenStore(),
	}

	for _, opt := range opts {
		opt(cred)
	}

	if cred.poster == nil {
		cred.poster = dthttp.NewClient("", nil, dthttp.WithLogger(cred.logger))
	}

	if cred.store.Get().ValidAt(cred.now()) {
		return cred, nil
	}

	err = cred.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}

	return cred, nil
}

// GetToken returns the cached bearer header value, exchanging first when the
// cached token is missing or about to expire.
func (c *OAuthCredential) GetToken(ctx context.Context) (string, error) {
	token := c.store.Get()
	if token.ValidAt(c.now()) {
		return token.HeaderValue(), nil
	}

	err := c.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return c.store.Get().HeaderValue(), nil
}

// RefreshToken performs an exchange unconditionally. Concurrent callers share
// a single exchange.
func (c *OAuthCredential) RefreshToken(ctx context.Context) error {
	_, err, shared := c.group.Do(c.keyID, func() (interface{}, error) {
		token, exchangeErr := c.exchange(ctx)
		if exchangeErr != nil {
			return nil, exchangeErr
		}

		c.store.Set(token)

		return token, nil
	})
	if err != nil {
		return err
	}

	c.logger.Debug("Service account token refreshed", map[string]interface{}{
		"key_id": c.keyID,
		"shared": shared,
	})

	return nil
}

// SetToken replaces the cached bearer token.
func (c *OAuthCredential) SetToken(token string, expiresAt time.Time) {
	c.store.Set(&Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// HasExpired reports whether the cached token is past its expiry.
func (c *OAuthCredential) HasExpired() bool {
	return c.store.Get().Expired(c.now())
}

// CurrentToken returns the cached token without refreshing.
func (c *OAuthCredential) CurrentToken() *Token {
	return c.store.Get()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *OAuthCredential) exchange(ctx context.Context) (*Token, error) {
	assertion, err := c.assertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("assertion", assertion)
	form.Set("grant_type", jwtBearerGrantType)

	body, err := c.poster.PostForm(ctx, c.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("exchanging service account credentials: %w", err)
	}

	var resp tokenResponse

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	if resp.AccessToken == "" {
		return nil, ErrEmptyAccessToken
	}

	issued := c.now()

	return &Token{
		AccessToken: resp.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   resp.ExpiresIn,
		ExpiresAt:   issued.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// assertion builds the HS256 JWT identifying the service account.
func (c *OAuthCredential) assertion() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"aud": c.tokenURL,
		"iss": c.email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString([]byte(c.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signed, nil
}
