package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Static errors for err113 compliance.
var (
	ErrInvalidPath = errors.New("request path is not a valid URL")
)

// TokenManager supplies the Authorization header value for outgoing requests.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Client is the request core. Every API call goes through Do, which attaches
// auth, classifies each response, and retries up to the configured ceiling.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokenManager TokenManager
	logger       dt.Logger
	debug        bool
	userAgent    string
	maxRetries   int
	timeout      time.Duration
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	limiter      *rate.Limiter
	interceptors *dt.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger dt.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithMaxRetries sets the retry ceiling. It counts the first attempt.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithTimeout sets the timeout applied to each attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetryWait bounds the exponential wait used when the server sends no
// Retry-After hint. A zero max retries immediately.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithRetryConfig sets the retry ceiling and wait bounds together.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		WithMaxRetries(maxRetries)(c)
		WithRetryWait(waitMin, waitMax)(c)
	}
}

// WithHTTPClient sets the underlying HTTP client. It is copied, never mutated.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRateLimit throttles attempts to requestsPerSecond. Non-positive values
// disable the throttle.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil

			return
		}

		if burst < 1 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithInterceptors runs chain around every logical call.
func WithInterceptors(chain *dt.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a request core rooted at baseURL. A nil tokenManager sends
// requests without an Authorization header.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   cleanhttp.DefaultPooledClient(),
		tokenManager: tokenManager,
		logger:       dt.NopLogger{},
		userAgent:    constants.DefaultUserAgent,
		maxRetries:   dt.DefaultMaxRetries,
		timeout:      dt.DefaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.limiter != nil {
		throttled := *client.httpClient

		base := throttled.Transport
		if base == nil {
			base = cleanhttp.DefaultPooledTransport()
		}

		throttled.Transport = &throttledTransport{base: base, limiter: client.limiter}
		client.httpClient = &throttled
	}

	return client
}

// BaseURL returns the root every relative path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying client, throttle included. Long-lived
// connections that bypass the retry driver share it.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// UserAgent returns the User-Agent header value.
func (c *Client) UserAgent() string { return c.userAgent }

// TokenManager returns the default credential, or nil.
func (c *Client) TokenManager() TokenManager { return c.tokenManager }

// Request describes one logical API call.
type Request struct {
	Method string
	// Path is relative to the base URL, or an absolute URL.
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is encoded as JSON. RawBody, when set, is sent verbatim instead.
	Body        interface{}
	RawBody     string
	ContentType string
	SkipAuth    bool
	// Options override the client defaults for this call. When nil, options
	// attached to the context with dt.WithCallOptions are used.
	Options *dt.CallOptions
}

// Response is the outcome of the final attempt of a call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}

	err := json.Unmarshal(r.Body, v)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// callSettings is the per-call snapshot of client defaults and overrides.
type callSettings struct {
	timeout      time.Duration
	maxRetries   int
	tokenManager TokenManager
	skipAuth     bool
}

func (c *Client) settings(ctx context.Context, req *Request) callSettings {
	settings := callSettings{
		timeout:      c.timeout,
		maxRetries:   c.maxRetries,
		tokenManager: c.tokenManager,
		skipAuth:     req.SkipAuth,
	}

	opts := req.Options
	if opts == nil {
		opts = dt.CallOptionsFrom(ctx)
	}

	if opts != nil {
		if opts.Timeout > 0 {
			settings.timeout = opts.Timeout
		}

		if opts.MaxRetries > 0 {
			settings.maxRetries = opts.MaxRetries
		}

		if opts.Credential != nil {
			settings.tokenManager = opts.Credential
		}

		settings.skipAuth = settings.skipAuth || opts.SkipAuth
	}

	if settings.tokenManager == nil {
		settings.skipAuth = true
	}

	return settings
}

// Do executes req. On failure it returns the final attempt's response, when
// there was one, together with a *dt.Error.
//
//nolint:funlen
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	settings := c.settings(ctx, req)
	requestID := uuid.NewString()

	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	intercepted := &dt.Request{Method: req.Method, Path: req.Path, Headers: http.Header{}, Body: body}
	for key, value := range req.Headers {
		intercepted.Headers.Set(key, value)
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return nil, err
	}

	var rawBody interface{}
	if len(intercepted.Body) > 0 {
		rawBody = intercepted.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header = intercepted.Headers
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", requestID)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if !settings.skipAuth {
		err = c.authorize(ctx, httpReq.Request, settings.tokenManager, false)
		if err != nil {
			return nil, err
		}
	}

	retrier := c.retrier(ctx, settings, requestID)

	httpResp, err := retrier.Do(httpReq)
	resp, err := c.finish(ctx, httpResp, err)

	final := &dt.Response{Error: err}
	if resp != nil {
		final.StatusCode = resp.StatusCode
		final.Headers = resp.Headers
		final.Body = resp.Body
	}

	interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, final)
	if err == nil && interceptErr != nil {
		err = interceptErr
	}

	return resp, err
}

// retrier builds the retry driver for one call. It is discarded afterwards,
// so the closures may share per-call state.
func (c *Client) retrier(ctx context.Context, settings callSettings, requestID string) *retryablehttp.Client {
	httpClient := *c.httpClient
	httpClient.Timeout = settings.timeout

	var lastStatus int

	retrier := &retryablehttp.Client{
		HTTPClient:   &httpClient,
		RetryMax:     settings.maxRetries - 1,
		RetryWaitMin: c.retryWaitMin,
		RetryWaitMax: c.retryWaitMax,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	if c.debug {
		retrier.Logger = leveledLogger{logger: c.logger}
		retrier.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			c.logger.Debug("HTTP Request", map[string]interface{}{
				"request_id": requestID,
				"method":     req.Method,
				"url":        req.URL.Redacted(),
				"attempt":    attempt + 1,
			})
		}
		retrier.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
			c.logger.Debug("HTTP Response", map[string]interface{}{
				"request_id":  requestID,
				"status_code": resp.StatusCode,
			})
		}
	}

	retrier.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if err != nil {
			lastStatus = 0

			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}

		lastStatus = resp.StatusCode

		return dt.Classify(resp.StatusCode, resp.Header).Retry, nil
	}

	retrier.Backoff = func(waitMin, waitMax time.Duration, attempt int, resp *http.Response) time.Duration {
		wait := backoff(waitMin, waitMax, attempt, resp)

		fields := map[string]interface{}{
			"request_id": requestID,
			"attempt":    attempt + 1,
			"wait":       wait.String(),
		}
		if resp != nil {
			fields["status_code"] = resp.StatusCode
		}

		c.logger.Warn("Retrying request", fields)

		return wait
	}

	retrier.PrepareRetry = func(req *http.Request) error {
		if settings.skipAuth {
			return nil
		}

		return c.authorize(ctx, req, settings.tokenManager, lastStatus == http.StatusUnauthorized)
	}

	return retrier
}

// authorize sets the Authorization header, refreshing the credential first
// when refresh is true.
func (c *Client) authorize(ctx context.Context, req *http.Request, tokenManager TokenManager, refresh bool) error {
	if refresh {
		err := tokenManager.RefreshToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh auth token: %w", err)
		}
	}

	token, err := tokenManager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", token)
	}

	return nil
}

// finish turns the retry driver's outcome into exactly one result.
func (c *Client) finish(ctx context.Context, httpResp *http.Response, err error) (*Response, error) {
	if httpResp == nil {
		if err == nil {
			return nil, &dt.Error{Kind: dt.KindUnknown, Message: "no response received"}
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}

		return nil, &dt.Error{Kind: dt.KindInternalServerError, Message: "request failed after retries", Err: err}
	}

	defer func() { _ = httpResp.Body.Close() }()

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}

		// The body may already be drained and closed by the retry driver.
		return &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header}, &dt.Error{
			Kind:       dt.Classify(httpResp.StatusCode, httpResp.Header).Kind,
			StatusCode: httpResp.StatusCode,
			Message:    "request failed",
			Err:        err,
		}
	}

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return nil, &dt.Error{Kind: dt.KindInternalServerError, Message: "failed to read response body", Err: readErr}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}

	classification := dt.Classify(httpResp.StatusCode, httpResp.Header)
	if classification.Failed {
		return resp, dt.NewAPIError(classification.Kind, httpResp.StatusCode, body)
	}

	return resp, nil
}

// backoff prefers the server's Retry-After hint, then an exponential wait
// bounded by waitMin and waitMax.
func backoff(waitMin, waitMax time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		hint := dt.Classify(resp.StatusCode, resp.Header).RetryAfter
		if hint > 0 {
			return hint
		}
	}

	if waitMax <= 0 {
		return 0
	}

	wait := time.Duration(math.Pow(2, float64(attempt)) * float64(waitMin))
	if wait <= 0 || wait > waitMax {
		wait = waitMax
	}

	return wait
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	target := path

	parsed, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	if !parsed.IsAbs() {
		target = c.baseURL + path
	}

	if len(query) == 0 {
		return target, nil
	}

	full, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, target)
	}

	merged := full.Query()
	for key, values := range query {
		for _, value := range values {
			merged.Add(key, value)
		}
	}

	full.RawQuery = merged.Encode()

	return full.String(), nil
}

func encodeBody(req *Request) ([]byte, string, error) {
	if req.RawBody != "" {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "text/plain"
		}

		return []byte(req.RawBody), contentType, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	var buf bytes.Buffer

	err := json.NewEncoder(&buf).Encode(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), contentType, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// PostForm sends an unauthenticated form POST and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, &Request{
		Method:      http.MethodPost,
		Path:        rawURL,
		RawBody:     form.Encode(),
		ContentType: "application/x-www-form-urlencoded",
		SkipAuth:    true,
	})
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

type throttledTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	err := t.limiter.Wait(req.Context())
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	return t.base.RoundTrip(req)
}

// leveledLogger exposes dt.Logger to the retry driver.
type leveledLogger struct {
	logger dt.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fieldsFrom(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fieldsFrom(keysAndValues))
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fieldsFrom(keysAndValues))
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fieldsFrom(keysAndValues))
}

func fieldsFrom(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}
