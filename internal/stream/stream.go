// Package stream implements reconnecting event subscriptions over the
// newline-delimited JSON streaming endpoints.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Static errors for err113 compliance.
var (
	ErrMalformedLine  = errors.New("stream line is not valid JSON")
	ErrMissingResult  = errors.New("stream line has no result envelope")
	ErrStreamClosed   = errors.New("server closed the stream")
	ErrWatchdogExpiry = errors.New("no stream data within ping interval")
)

const (
	pingEventType    = "ping"
	pingIntervalKey  = "ping_interval"
	maxErrorBodySize = 64 * 1024
)

// TokenSource supplies the Authorization header value on every (re)connect.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
}

// Config describes one subscription.
type Config struct {
	// HTTPClient is copied and its Timeout cleared; the watchdog bounds reads.
	HTTPClient *http.Client
	// URL is the absolute stream endpoint.
	URL   string
	Query url.Values
	// Credential may be nil for unauthenticated endpoints.
	Credential   TokenSource
	PingInterval time.Duration
	PingJitter   time.Duration
	// MaxRetries is the number of consecutive failed connections tolerated
	// before the subscription ends.
	MaxRetries int
	UserAgent  string
	Logger     dt.Logger
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackoffFunc returns the delay before reconnect number retry+1.
type BackoffFunc func(retry int) time.Duration

// Option configures a Subscription.
type Option func(*Subscription)

// WithSleep replaces the wait used between reconnects.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Subscription) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithBackoff replaces the reconnect delay schedule.
func WithBackoff(backoff BackoffFunc) Option {
	return func(s *Subscription) {
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

// ExponentialBackoff waits 2^retry seconds.
func ExponentialBackoff(retry int) time.Duration {
	return time.Duration(math.Pow(constants.StreamBackoffBase, float64(retry))) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// connection is one open streaming response.
type connection struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	body     io.ReadCloser
	scanner  *bufio.Scanner
	watchdog *time.Timer
}

func (c *connection) close() {
	c.watchdog.Stop()
	c.cancel(nil)
	_ = c.body.Close()
}

// Subscription is a live event stream. It reconnects on any failure, waiting
// 2^n seconds after the n-th consecutive failure, and ends once MaxRetries
// consecutive failures have been absorbed. Any envelope received from the
// server, pings included, resets the failure count.
//
// Next must not be called concurrently. Close may be called from any goroutine.
type Subscription struct {
	cfg        Config
	httpClient *http.Client
	logger     dt.Logger
	sleep      SleepFunc
	backoff    BackoffFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *connection

	retries    int
	refresh    bool
	terminated bool
}

// Subscribe prepares a subscription bound to ctx. No connection is opened
// until the first call to Next.
func Subscribe(ctx context.Context, cfg Config, opts ...Option) *Subscription {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = cleanhttp.DefaultPooledClient()
	}

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = dt.DefaultPingInterval
	}

	if cfg.PingJitter < 0 {
		cfg.PingJitter = 0
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.DefaultUserAgent
	}

	if cfg.Logger == nil {
		cfg.Logger = dt.NopLogger{}
	}

	httpClient := *cfg.HTTPClient
	httpClient.Timeout = 0

	subCtx, cancel := context.WithCancel(ctx)

	s := &Subscription{
		cfg:        cfg,
		httpClient: &httpClient,
		logger:     cfg.Logger,
		sleep:      sleepContext,
		backoff:    ExponentialBackoff,
		ctx:        subCtx,
		cancel:     cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Next blocks until the next event arrives. It returns io.EOF once the
// subscription has ended, whether by Close, cancellation of either context,
// or exhausted reconnects. Cancelling ctx ends the subscription.
func (s *Subscription) Next(ctx context.Context) (*dt.Event, error) {
	if ctx != nil {
		stop := context.AfterFunc(ctx, s.cancel)
		defer stop()
	}

	for {
		if s.terminated {
			return nil, io.EOF
		}

		if s.ctx.Err() != nil {
			s.terminate("cancelled")

			return nil, io.EOF
		}

		conn := s.current()
		if conn == nil {
			var err error

			conn, err = s.connect()
			if err != nil {
				if !s.retry(err) {
					return nil, io.EOF
				}

				continue
			}
		}

		event, err := s.read(conn)
		if err == nil {
			return event, nil
		}

		s.disconnect()

		if !s.retry(err) {
			return nil, io.EOF
		}
	}
}

// Events yields events until the subscription ends.
func (s *Subscription) Events(ctx context.Context) iter.Seq[*dt.Event] {
	return func(yield func(*dt.Event) bool) {
		for {
			event, err := s.Next(ctx)
			if err != nil || !yield(event) {
				return
			}
		}
	}
}

// Close ends the subscription and releases its connection.
func (s *Subscription) Close() {
	s.cancel()
	s.disconnect()
}

func (s *Subscription) current() *connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn
}

func (s *Subscription) disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.close()
	}
}

func (s *Subscription) terminate(reason string) {
	s.terminated = true
	s.cancel()
	s.disconnect()

	s.logger.Debug("Stream terminated", map[string]interface{}{
		"url":    s.cfg.URL,
		"reason": reason,
	})
}

func (s *Subscription) readTimeout() time.Duration {
	return s.cfg.PingInterval + s.cfg.PingJitter
}

func (s *Subscription) target() (string, error) {
	parsed, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid stream URL %s: %w", s.cfg.URL, err)
	}

	query := parsed.Query()
	for key, values := range s.cfg.Query {
		for _, value := range values {
			query.Add(key, value)
		}
	}

	seconds := max(int(s.cfg.PingInterval/time.Second), 1)
	query.Set(pingIntervalKey, strconv.Itoa(seconds)+"s")

	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// connect opens the streaming request. The watchdog is armed before the
// request is sent so a stalled handshake is abandoned like a stalled read.
func (s *Subscription) connect() (*connection, error) {
	target, err := s.target()
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancelCause(s.ctx)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, target, nil)
	if err != nil {
		cancel(nil)

		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	err = s.authorize(connCtx, req)
	if err != nil {
		cancel(nil)

		return nil, err
	}

	watchdog := time.AfterFunc(s.readTimeout(), func() { cancel(ErrWatchdogExpiry) })

	s.logger.Debug("Starting stream", map[string]interface{}{
		"url":   req.URL.Redacted(),
		"retry": s.retries,
	})

	resp, err := s.httpClient.Do(req)
	if err != nil {
		watchdog.Stop()
		cancel(nil)

		return nil, fmt.Errorf("failed to open stream: %w", causeOf(connCtx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		_ = resp.Body.Close()

		watchdog.Stop()
		cancel(nil)

		classification := dt.Classify(resp.StatusCode, resp.Header)
		if resp.StatusCode == http.StatusUnauthorized {
			s.refresh = true
		}

		return nil, dt.NewAPIError(classification.Kind, resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, constants.StreamBufferSize), constants.StreamMaxLineSize)

	conn := &connection{
		ctx:      connCtx,
		cancel:   cancel,
		body:     resp.Body,
		scanner:  scanner,
		watchdog: watchdog,
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	return conn, nil
}

// authorize re-reads the token so a refreshed credential is picked up on
// every reconnect. A 401 on the previous connect forces a refresh first.
func (s *Subscription) authorize(ctx context.Context, req *http.Request) error {
	if s.cfg.Credential == nil {
		return nil
	}

	if s.refresh {
		s.refresh = false

		err := s.cfg.Credential.RefreshToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh auth token: %w", err)
		}
	}

	token, err := s.cfg.Credential.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", token)
	}

	return nil
}

// read consumes lines until an event is available. Pings reset the failure
// count and are not returned. The watchdog only runs while read is blocked.
func (s *Subscription) read(conn *connection) (*dt.Event, error) {
	conn.watchdog.Reset(s.readTimeout())

	for conn.scanner.Scan() {
		conn.watchdog.Reset(s.readTimeout())

		line := bytes.TrimSpace(conn.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if !gjson.ValidBytes(line) {
			return nil, ErrMalformedLine
		}

		result := gjson.GetBytes(line, "result")
		if !result.Exists() {
			return nil, ErrMissingResult
		}

		s.retries = 0

		raw := result.Get("event")
		if raw.Get("eventType").String() == pingEventType {
			s.logger.Debug("Got ping", nil)

			continue
		}

		conn.watchdog.Stop()

		var event dt.Event

		err := json.Unmarshal([]byte(raw.Raw), &event)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stream event: %w", err)
		}

		return &event, nil
	}

	err := conn.scanner.Err()
	if err == nil {
		return nil, ErrStreamClosed
	}

	return nil, causeOf(conn.ctx, err)
}

// retry runs the backoff between connections. It reports false once the
// subscription has ended.
func (s *Subscription) retry(cause error) bool {
	if s.ctx.Err() != nil {
		s.terminate("cancelled")

		return false
	}

	if s.retries >= s.cfg.MaxRetries {
		s.logger.Warn("Stream reconnect attempts exhausted", map[string]interface{}{
			"url":         s.cfg.URL,
			"max_retries": s.cfg.MaxRetries,
			"error":       cause.Error(),
		})
		s.terminate("retries exhausted")

		return false
	}

	delay := s.backoff(s.retries)
	s.retries++

	s.logger.Warn("Connection lost", map[string]interface{}{
		"url":         s.cfg.URL,
		"retry":       s.retries,
		"max_retries": s.cfg.MaxRetries,
		"wait":        delay.String(),
		"error":       cause.Error(),
	})

	err := s.sleep(s.ctx, delay)
	if err != nil {
		s.terminate("cancelled")

		return false
	}

	return true
}

// causeOf prefers the reason the connection context was cancelled, such as a
// watchdog expiry, over the transport's generic error.
func causeOf(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	if cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	return err
}
