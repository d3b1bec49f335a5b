package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

const (
	testKeyID  = "key-id"
	testSecret = "key-secret"
	testEmail  = "sa@project.serviceaccount.d21s.com"
)

type tokenServer struct {
	server   *httptest.Server
	requests atomic.Int32
}

// newTokenServer validates the JWT-bearer exchange and hands out numbered
// tokens valid for expiresIn seconds.
func newTokenServer(t *testing.T, expiresIn int, delay time.Duration) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.requests.Add(1)

		assert.Equal(t, "/oauth2/token", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))

		err := r.ParseForm()
		assert.NoError(t, err)
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))

		parser := jwt.NewParser(jwt.WithoutClaimsValidation())

		parsed, err := parser.Parse(r.Form.Get("assertion"), func(token *jwt.Token) (interface{}, error) {
			assert.Equal(t, testKeyID, token.Header["kid"])
			assert.Equal(t, jwt.SigningMethodHS256.Alg(), token.Method.Alg())

			return []byte(testSecret), nil
		})
		if assert.NoError(t, err) {
			claims := parsed.Claims.(jwt.MapClaims)
			assert.Equal(t, testEmail, claims["iss"])
			assert.Equal(t, ts.server.URL+"/oauth2/token", claims["aud"])
			assert.InDelta(t, 3600, claims["exp"].(float64)-claims["iat"].(float64), 1)
		}

		time.Sleep(delay)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + string(rune('0'+n)),
			"token_type":   "bearer",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(ts.server.Close)

	return ts
}

func (ts *tokenServer) URL() string { return ts.server.URL + "/oauth2/token" }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestNewOAuthCredential_ExchangesImmediately(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 0)

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail, WithTokenURL(ts.URL()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.requests.Load())
	assert.False(t, cred.HasExpired())

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-1", token)
	assert.Equal(t, int32(1), ts.requests.Load())
}

func TestNewOAuthCredential_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		keyID, secret, email string
		field                string
	}{
		{"missing key id", "", testSecret, testEmail, "key_id"},
		{"missing secret", testKeyID, "", testEmail, "secret"},
		{"missing email", testKeyID, testSecret, "", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTokenServer(t, 3600, 0)

			cred, err := NewOAuthCredential(context.Background(), tt.keyID, tt.secret, tt.email, WithTokenURL(ts.URL()))
			require.Error(t, err)
			assert.Nil(t, cred)
			assert.ErrorIs(t, err, dt.ErrTypeError)
			assert.Contains(t, err.Error(), tt.field)
			assert.Equal(t, int32(0), ts.requests.Load())
		})
	}
}

func TestOAuthCredential_ExpiryAndRefresh(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 0)
	clock := &fakeClock{now: time.Now()}

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithTokenURL(ts.URL()), withClock(clock.Now))
	require.NoError(t, err)
	assert.False(t, cred.HasExpired())

	clock.Advance(2 * time.Hour)
	assert.True(t, cred.HasExpired())

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-2", token)
	assert.False(t, cred.HasExpired())
	assert.Equal(t, int32(2), ts.requests.Load())
}

func TestOAuthCredential_GetTokenRefreshesInsideExpiryBuffer(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 0)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithTokenURL(ts.URL()), withClock(clock.Now))
	require.NoError(t, err)

	clock.Advance(time.Hour - 31*time.Second)

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-1", token)
	assert.Equal(t, int32(1), ts.requests.Load())

	clock.Advance(2 * time.Second)
	assert.False(t, cred.HasExpired())

	token, err = cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-2", token)
	assert.Equal(t, int32(2), ts.requests.Load())
	assert.Equal(t, clock.Now().Add(time.Hour), cred.CurrentToken().ExpiresAt)
}

func TestOAuthCredential_ExchangeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		target   error
		attempts int32
	}{
		{"rejected assertion", http.StatusBadRequest, dt.ErrBadRequest, 1},
		{"unauthenticated is retried", http.StatusUnauthorized, dt.ErrUnauthenticated, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			}))
			defer server.Close()

			_, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail, WithTokenURL(server.URL))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), "invalid_grant")
			assert.Equal(t, tt.attempts, attempts.Load())
		})
	}
}

func TestOAuthCredential_EmptyAccessToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer server.Close()

	_, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail, WithTokenURL(server.URL))
	require.ErrorIs(t, err, ErrEmptyAccessToken)
}

func TestOAuthCredential_ConcurrentRefreshIsShared(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 200*time.Millisecond)

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail, WithTokenURL(ts.URL()))
	require.NoError(t, err)

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, cred.RefreshToken(context.Background()))
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(2), ts.requests.Load())
}

func TestOAuthCredential_InitialToken(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 0)

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithTokenURL(ts.URL()), WithInitialToken("cached", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int32(0), ts.requests.Load())

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer cached", token)

	// A stale seed is replaced at construction.
	_, err = NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithTokenURL(ts.URL()), WithInitialToken("stale", time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.requests.Load())
}

func TestOAuthCredential_SetToken(t *testing.T) {
	t.Parallel()

	ts := newTokenServer(t, 3600, 0)

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail, WithTokenURL(ts.URL()))
	require.NoError(t, err)

	expiresAt := time.Now().Add(time.Hour)
	cred.SetToken("manual-token", expiresAt)

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer manual-token", token)
	assert.Equal(t, expiresAt.Unix(), cred.CurrentToken().ExpiresAt.Unix())
}

type stubPoster struct {
	body []byte
	err  error
}

func (s *stubPoster) PostForm(context.Context, string, url.Values) ([]byte, error) {
	return s.body, s.err
}

func TestOAuthCredential_FormPoster(t *testing.T) {
	t.Parallel()

	cred, err := NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithFormPoster(&stubPoster{body: []byte(`{"access_token":"stub","expires_in":60}`)}))
	require.NoError(t, err)

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer stub", token)

	boom := errors.New("boom")

	_, err = NewOAuthCredential(context.Background(), testKeyID, testSecret, testEmail,
		WithFormPoster(&stubPoster{err: boom}))
	require.ErrorIs(t, err, boom)
}

func TestBasicCredential(t *testing.T) {
	t.Parallel()

	cred, err := NewBasicCredential("key", "secret")
	require.NoError(t, err)

	token, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Basic a2V5OnNlY3JldA==", token)
	assert.False(t, cred.HasExpired())
	require.NoError(t, cred.RefreshToken(context.Background()))

	token, err = cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Basic a2V5OnNlY3JldA==", token)

	_, err = NewBasicCredential("", "secret")
	require.ErrorIs(t, err, dt.ErrTypeError)

	_, err = NewBasicCredential("key", "")
	require.ErrorIs(t, err, dt.ErrTypeError)
}
