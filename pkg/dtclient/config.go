package dtclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/dtclient/internal/auth"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// EnvPrefix is prepended to every setting name to form its environment
// variable, so "base_url" is read from DT_BASE_URL.
const EnvPrefix = "DT"

// Setting keys, shared by the YAML config file and the environment.
const (
	KeyServiceAccountKeyID  = "service_account_key_id"
	KeyServiceAccountSecret = "service_account_secret"
	KeyServiceAccountEmail  = "service_account_email"
	KeyBaseURL              = "base_url"
	KeyAuthURL              = "auth_url"
	KeyRequestTimeout       = "request_timeout"
	KeyMaxRequestRetries    = "max_request_retries"
	KeyPingInterval         = "ping_interval"
	KeyPingJitter           = "ping_jitter"
	KeyRequestsPerSecond    = "requests_per_second"
	KeyDebug                = "debug"
)

// Settings is the flattened result of LoadConfig.
type Settings struct {
	KeyID  string `json:"service_account_key_id" yaml:"service_account_key_id"`
	Secret string `json:"-"                      yaml:"-"`
	Email  string `json:"service_account_email"  yaml:"service_account_email"`

	BaseURL           string        `json:"base_url"            yaml:"base_url"`
	AuthURL           string        `json:"auth_url"            yaml:"auth_url"`
	RequestTimeout    time.Duration `json:"request_timeout"     yaml:"request_timeout"`
	MaxRetries        int           `json:"max_request_retries" yaml:"max_request_retries"`
	PingInterval      time.Duration `json:"ping_interval"       yaml:"ping_interval"`
	PingJitter        time.Duration `json:"ping_jitter"         yaml:"ping_jitter"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	Debug             bool          `json:"debug"               yaml:"debug"`
}

// LoadConfig resolves settings from, in order of precedence, DT_* environment
// variables, the given .env files (".env" in the working directory when none
// are given and it exists), the YAML file at configFile, and the documented
// defaults. An empty configFile skips the file layer.
//
// Durations accept Go syntax ("1500ms") or a plain number of seconds.
func LoadConfig(configFile string, envFiles ...string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")

		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	err := applyEnvFiles(v, envFiles)
	if err != nil {
		return nil, err
	}

	return settingsFrom(v)
}

func setDefaults(v *viper.Viper) {
	defaults := dt.DefaultConfig()

	v.SetDefault(KeyBaseURL, defaults.BaseURL)
	v.SetDefault(KeyAuthURL, defaults.AuthURL)
	v.SetDefault(KeyRequestTimeout, defaults.RequestTimeout.String())
	v.SetDefault(KeyMaxRequestRetries, defaults.MaxRetries)
	v.SetDefault(KeyPingInterval, defaults.PingInterval.String())
	v.SetDefault(KeyPingJitter, defaults.PingJitter.String())
	v.SetDefault(KeyRequestsPerSecond, 0)
	v.SetDefault(KeyDebug, false)
}

// applyEnvFiles layers .env values between the real environment and the
// config file without touching the process environment.
func applyEnvFiles(v *viper.Viper, envFiles []string) error {
	if len(envFiles) == 0 {
		_, err := os.Stat(".env")
		if err != nil {
			return nil
		}

		envFiles = []string{".env"}
	}

	values, err := godotenv.Read(envFiles...)
	if err != nil {
		return fmt.Errorf("reading env file: %w", err)
	}

	for name, value := range values {
		key, ok := strings.CutPrefix(name, EnvPrefix+"_")
		if !ok {
			continue
		}

		_, present := os.LookupEnv(name)
		if present {
			continue
		}

		v.Set(strings.ToLower(key), value)
	}

	return nil
}

func settingsFrom(v *viper.Viper) (*Settings, error) {
	settings := &Settings{
		KeyID:             v.GetString(KeyServiceAccountKeyID),
		Secret:            v.GetString(KeyServiceAccountSecret),
		Email:             v.GetString(KeyServiceAccountEmail),
		BaseURL:           v.GetString(KeyBaseURL),
		AuthURL:           v.GetString(KeyAuthURL),
		MaxRetries:        v.GetInt(KeyMaxRequestRetries),
		RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
		Debug:             v.GetBool(KeyDebug),
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{KeyRequestTimeout, &settings.RequestTimeout},
		{KeyPingInterval, &settings.PingInterval},
		{KeyPingJitter, &settings.PingJitter},
	}

	for _, d := range durations {
		value, err := parseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}

		*d.target = value
	}

	return settings, nil
}

// parseDuration accepts Go duration syntax or a number of seconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, dt.NewTypeError("%q is neither a duration nor a number of seconds", value)
	}

	return duration, nil
}

// Config returns a client config populated from the settings. The
// credential is left unset.
func (s *Settings) Config() *dt.Config {
	return &dt.Config{
		BaseURL:           s.BaseURL,
		AuthURL:           s.AuthURL,
		RequestTimeout:    s.RequestTimeout,
		MaxRetries:        s.MaxRetries,
		PingInterval:      s.PingInterval,
		PingJitter:        s.PingJitter,
		RequestsPerSecond: s.RequestsPerSecond,
		Debug:             s.Debug,
	}
}

// HasServiceAccount reports whether all three service account fields are set.
func (s *Settings) HasServiceAccount() bool {
	return s.KeyID != "" && s.Secret != "" && s.Email != ""
}

// Credential builds the credential the settings describe.
func (s *Settings) Credential(ctx context.Context, config *dt.Config) (dt.Credential, error) {
	switch {
	case s.HasServiceAccount():
		credential, err := NewServiceAccountCredential(ctx, config, s.KeyID, s.Secret, s.Email)
		if err != nil {
			return nil, err
		}

		return credential, nil
	case s.KeyID != "" && s.Secret != "":
		credential, err := auth.NewBasicCredential(s.KeyID, s.Secret)
		if err != nil {
			return nil, fmt.Errorf("creating basic credential: %w", err)
		}

		return credential, nil
	default:
		return nil, fmt.Errorf("%w: set %s_%s, %s_%s and %s_%s",
			ErrCredentialsMissing,
			EnvPrefix, strings.ToUpper(KeyServiceAccountKeyID),
			EnvPrefix, strings.ToUpper(KeyServiceAccountSecret),
			EnvPrefix, strings.ToUpper(KeyServiceAccountEmail))
	}
}

// IsCredentialsMissing reports whether err came from Settings.Credential
// finding no credentials.
func IsCredentialsMissing(err error) bool {
	return errors.Is(err, ErrCredentialsMissing)
}
