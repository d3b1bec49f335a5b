package dt

import (
	"context"
	"time"
)

// Defaults applied by DefaultConfig.
const (
	DefaultBaseURL        = "https://api.disruptive-technologies.com/v2"
	DefaultAuthURL        = "https://identity.disruptive-technologies.com/oauth2/token"
	DefaultRequestTimeout = 3 * time.Second
	DefaultMaxRetries     = 3
	DefaultPingInterval   = 10 * time.Second
	DefaultPingJitter     = 2 * time.Second
)

// Credential produces the Authorization header value for outgoing requests.
// Implementations live in internal/auth and are built by pkg/dtclient.
type Credential interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Config is the process-wide default snapshot a client is built from.
// Clients copy it at construction; later edits to the struct have no effect
// on a running client.
type Config struct {
	// BaseURL is the API root every resource path is appended to.
	BaseURL string
	// AuthURL is the OAuth token endpoint used by service account credentials.
	AuthURL string

	// RequestTimeout bounds each individual HTTP round trip.
	RequestTimeout time.Duration
	// MaxRetries is the retry ceiling. It counts the first attempt, so 3
	// means at most three requests per call.
	MaxRetries int
	// RetryWaitMin and RetryWaitMax bound the wait between attempts when the
	// server gives no Retry-After hint. Zero means retry immediately.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// PingInterval is requested from the server on event streams. A stream
	// read that stays silent for PingInterval+PingJitter is abandoned.
	PingInterval time.Duration
	PingJitter   time.Duration

	// RequestsPerSecond enables a client-side throttle when positive.
	RequestsPerSecond float64

	// Interceptors run once around every logical call, not per attempt.
	Interceptors *InterceptorChain

	Credential Credential
	Logger     Logger
	Debug      bool
	UserAgent  string
}

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		AuthURL:        DefaultAuthURL,
		RequestTimeout: DefaultRequestTimeout,
		MaxRetries:     DefaultMaxRetries,
		PingInterval:   DefaultPingInterval,
		PingJitter:     DefaultPingJitter,
		Logger:         NopLogger{},
	}
}

// WithDefaults returns a copy of c with every zero field set to its default.
func (c *Config) WithDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}

	merged := *c
	if merged.BaseURL == "" {
		merged.BaseURL = out.BaseURL
	}

	if merged.AuthURL == "" {
		merged.AuthURL = out.AuthURL
	}

	if merged.RequestTimeout <= 0 {
		merged.RequestTimeout = out.RequestTimeout
	}

	if merged.MaxRetries <= 0 {
		merged.MaxRetries = out.MaxRetries
	}

	if merged.PingInterval <= 0 {
		merged.PingInterval = out.PingInterval
	}

	if merged.PingJitter < 0 {
		merged.PingJitter = 0
	}

	if merged.Logger == nil {
		merged.Logger = out.Logger
	}

	return &merged
}

// CallOptions override the client's defaults for a single call. Zero fields
// inherit the client value.
type CallOptions struct {
	Timeout    time.Duration
	MaxRetries int
	Credential Credential
	SkipAuth   bool
}

type callOptionsKey struct{}

// WithCallOptions attaches per-call overrides to ctx. Resource clients read
// them back with CallOptionsFrom.
func WithCallOptions(ctx context.Context, opts *CallOptions) context.Context {
	return context.WithValue(ctx, callOptionsKey{}, opts)
}

// CallOptionsFrom returns the overrides attached to ctx, or nil.
func CallOptionsFrom(ctx context.Context) *CallOptions {
	opts, _ := ctx.Value(callOptionsKey{}).(*CallOptions)

	return opts
}
