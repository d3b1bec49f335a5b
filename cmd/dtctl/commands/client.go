package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/dtclient/internal/auth"
	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
	"github.com/fivetwenty-io/dtclient/pkg/dtclient"
)

const (
	configDirName      = ".dtctl"
	configFileName     = "config.yml"
	tokenCacheFileName = "tokens.yml"
)

// session bundles everything a command needs to talk to the API.
type session struct {
	client   dt.Client
	settings *dtclient.Settings
	logger   *dt.LogrusLogger
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}

	return filepath.Join(home, configDirName), nil
}

// configFile returns --config, or the default file when it exists.
func configFile() string {
	if path := viper.GetString(configKey); path != "" {
		return path
	}

	dir, err := configDir()
	if err != nil {
		return ""
	}

	path := filepath.Join(dir, configFileName)

	_, err = os.Stat(path)
	if err != nil {
		return ""
	}

	return path
}

func loadSettings() (*dtclient.Settings, error) {
	settings, err := dtclient.LoadConfig(configFile())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if baseURL := viper.GetString(baseURLKey); baseURL != "" {
		settings.BaseURL = baseURL
	}

	return settings, nil
}

// newSession loads settings and builds an authenticated client.
func newSession(cmd *cobra.Command) (*session, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	config := settings.Config()
	config.Logger = logger
	config.Debug = config.Debug || viper.GetBool(verboseKey)
	config.UserAgent = "dtctl/" + constants.Version

	credential, err := newCredential(cmd.Context(), cmd.ErrOrStderr(), settings, config)
	if err != nil {
		return nil, err
	}

	config.Credential = credential

	return &session{
		client:   dtclient.New(config),
		settings: settings,
		logger:   logger,
	}, nil
}

// newCredential prefers a cached bearer token and persists every token the
// service account exchange produces.
func newCredential(ctx context.Context, prompt io.Writer, settings *dtclient.Settings, config *dt.Config) (dt.Credential, error) {
	if settings.KeyID != "" && settings.Email != "" && settings.Secret == "" {
		secret, err := promptSecret(prompt)
		if err != nil {
			return nil, err
		}

		settings.Secret = secret
	}

	if !settings.HasServiceAccount() {
		credential, err := settings.Credential(ctx, config)
		if dtclient.IsCredentialsMissing(err) {
			return nil, constants.ErrNoCredentials
		}

		return credential, err
	}

	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	cache := NewTokenCache(filepath.Join(dir, tokenCacheFileName))

	cached, err := cache.Load(settings.KeyID)
	if err != nil {
		config.Logger.Warn("Ignoring unreadable token cache", map[string]interface{}{"error": err.Error()})
	}

	var opts []auth.OAuthOption
	if cached.Valid() {
		opts = append(opts, auth.WithInitialToken(cached.AccessToken, cached.ExpiresAt))
	}

	inner, err := dtclient.NewServiceAccountCredential(ctx, config, settings.KeyID, settings.Secret, settings.Email, opts...)
	if err != nil {
		return nil, err
	}

	if !cached.Valid() {
		err = cache.SaveToken(settings.KeyID, inner.CurrentToken())
		if err != nil {
			config.Logger.Warn("Failed to cache token", map[string]interface{}{"error": err.Error()})
		}
	}

	return auth.NewPersistingCredential(inner, cache, settings.KeyID, config.Logger), nil
}

// promptSecret reads the service account secret without echo.
func promptSecret(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int

	if !term.IsTerminal(fd) {
		return "", constants.ErrSecretNotFromTTY
	}

	_, _ = fmt.Fprint(w, "Service account secret: ")

	secret, err := term.ReadPassword(fd)

	_, _ = fmt.Fprintln(w)

	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}
