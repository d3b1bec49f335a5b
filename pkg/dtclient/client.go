package dtclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/dtclient/internal/auth"
	"github.com/fivetwenty-io/dtclient/internal/client"
	dthttp "github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Static errors for err113 compliance.
var (
	ErrCredentialsMissing = errors.New("no service account credentials configured")
)

// New creates a client from a snapshot of config. A nil credential sends
// unauthenticated requests.
func New(config *dt.Config) dt.Client {
	return client.New(config)
}

// NewWithBasic creates a client that authenticates every request with the
// service account key id and secret as HTTP basic credentials.
func NewWithBasic(config *dt.Config, keyID, secret string) (dt.Client, error) {
	credential, err := auth.NewBasicCredential(keyID, secret)
	if err != nil {
		return nil, fmt.Errorf("creating basic credential: %w", err)
	}

	return New(withCredential(config, credential)), nil
}

// NewWithServiceAccount creates a client that exchanges the service account
// for short lived bearer tokens. The first exchange happens before it
// returns, so bad credentials fail here.
func NewWithServiceAccount(ctx context.Context, config *dt.Config, keyID, secret, email string) (dt.Client, error) {
	credential, err := NewServiceAccountCredential(ctx, config, keyID, secret, email)
	if err != nil {
		return nil, err
	}

	return New(withCredential(config, credential)), nil
}

// NewServiceAccountCredential performs the OAuth exchange against
// config.AuthURL with the same timeout, retry ceiling and logger as API
// calls. opts are applied after the defaults.
func NewServiceAccountCredential(
	ctx context.Context,
	config *dt.Config,
	keyID, secret, email string,
	opts ...auth.OAuthOption,
) (*auth.OAuthCredential, error) {
	snapshot := config.WithDefaults()

	poster := dthttp.NewClient("", nil,
		dthttp.WithLogger(snapshot.Logger),
		dthttp.WithDebug(snapshot.Debug),
		dthttp.WithUserAgent(snapshot.UserAgent),
		dthttp.WithRetryConfig(snapshot.MaxRetries, snapshot.RetryWaitMin, snapshot.RetryWaitMax),
		dthttp.WithTimeout(snapshot.RequestTimeout),
	)

	oauthOpts := append([]auth.OAuthOption{
		auth.WithTokenURL(snapshot.AuthURL),
		auth.WithFormPoster(poster),
		auth.WithLogger(snapshot.Logger),
	}, opts...)

	credential, err := auth.NewOAuthCredential(ctx, keyID, secret, email, oauthOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating service account credential: %w", err)
	}

	return credential, nil
}

// NewFromEnv loads settings with LoadConfig("") and builds a client from
// them.
func NewFromEnv(ctx context.Context) (dt.Client, error) {
	settings, err := LoadConfig("")
	if err != nil {
		return nil, err
	}

	return NewFromSettings(ctx, settings, nil)
}

// NewFromSettings builds a client from loaded settings. logger may be nil.
// A complete service account uses the OAuth exchange; a key id and secret
// without an email fall back to basic credentials.
func NewFromSettings(ctx context.Context, settings *Settings, logger dt.Logger) (dt.Client, error) {
	config := settings.Config()
	config.Logger = logger

	credential, err := settings.Credential(ctx, config)
	if err != nil {
		return nil, err
	}

	config.Credential = credential

	return New(config), nil
}

func withCredential(config *dt.Config, credential dt.Credential) *dt.Config {
	snapshot := config.WithDefaults()
	snapshot.Credential = credential

	return snapshot
}
