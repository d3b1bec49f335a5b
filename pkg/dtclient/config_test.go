package dtclient_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
	"github.com/fivetwenty-io/dtclient/pkg/dtclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	emptyEnv := writeFile(t, ".env", "")

	settings, err := dtclient.LoadConfig("", emptyEnv)
	require.NoError(t, err)

	assert.Equal(t, dt.DefaultBaseURL, settings.BaseURL)
	assert.Equal(t, dt.DefaultAuthURL, settings.AuthURL)
	assert.Equal(t, dt.DefaultRequestTimeout, settings.RequestTimeout)
	assert.Equal(t, dt.DefaultMaxRetries, settings.MaxRetries)
	assert.Equal(t, dt.DefaultPingInterval, settings.PingInterval)
	assert.Equal(t, dt.DefaultPingJitter, settings.PingJitter)
	assert.False(t, settings.HasServiceAccount())
}

func TestLoadConfig_Layers(t *testing.T) {
	configFile := writeFile(t, "config.yaml", `
base_url: https://file.example.com/v2
request_timeout: 5
ping_interval: 1500ms
ping_jitter: 1
service_account_email: file@example.com
debug: true
`)

	envFile := writeFile(t, ".env", `
DT_BASE_URL=https://dotenv.example.com/v2
DT_SERVICE_ACCOUNT_KEY_ID=dotenv-key
DT_SERVICE_ACCOUNT_SECRET=dotenv-secret
DT_PING_JITTER=9
UNRELATED=ignored
`)

	t.Setenv("DT_MAX_REQUEST_RETRIES", "7")
	t.Setenv("DT_PING_JITTER", "3")

	settings, err := dtclient.LoadConfig(configFile, envFile)
	require.NoError(t, err)

	assert.Equal(t, "https://dotenv.example.com/v2", settings.BaseURL)
	assert.Equal(t, "dotenv-key", settings.KeyID)
	assert.Equal(t, "dotenv-secret", settings.Secret)
	assert.Equal(t, "file@example.com", settings.Email)
	assert.Equal(t, 5*time.Second, settings.RequestTimeout)
	assert.Equal(t, 1500*time.Millisecond, settings.PingInterval)
	assert.Equal(t, 3*time.Second, settings.PingJitter)
	assert.Equal(t, 7, settings.MaxRetries)
	assert.True(t, settings.Debug)
	assert.True(t, settings.HasServiceAccount())

	config := settings.Config()
	assert.Equal(t, settings.BaseURL, config.BaseURL)
	assert.Equal(t, 7, config.MaxRetries)
	assert.Nil(t, config.Credential)

	_, present := os.LookupEnv("DT_SERVICE_ACCOUNT_KEY_ID")
	assert.False(t, present)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		_, err := dtclient.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Parallel()

		_, err := dtclient.LoadConfig("", filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		t.Parallel()

		configFile := writeFile(t, "config.yaml", "request_timeout: soon\n")

		_, err := dtclient.LoadConfig(configFile, writeFile(t, ".env", ""))
		require.ErrorIs(t, err, dt.ErrTypeError)
	})
}
