package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/tournevent/cttgateway/pkg/shipper/auth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type tokenServer struct {
	*httptest.Server
	calls atomic.Int32
	form  chan map[string]string
}

func newTokenServer(t *testing.T, status int) *tokenServer {
	ts := &tokenServer{form: make(chan map[string]string, 16)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.calls.Add(1)
		assert.NoError(t, r.ParseForm())
		select {
		case ts.form <- map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"scope":         r.PostForm.Get("scope"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newSession(ts *tokenServer, cache auth.TokenCache, opts ...auth.Option) *auth.Session {
	return auth.NewSession("rest-main", auth.Config{
		TokenURL:     ts.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Username:     "user",
		Password:     "pass",
	}, cache, otelzap.New(zap.NewNop()), opts...)
}

func TestSession_AcquireReusesToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	s := newSession(ts, nil)
	ctx := context.Background()

	first, err := s.Acquire(ctx)
	require.NoError(t, err)
	second, err := s.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestSession_AcquireSendsClientCredentialsGrant(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	s := newSession(ts, nil)

	_, err := s.Acquire(context.Background())
	require.NoError(t, err)

	form := <-ts.form
	assert.Equal(t, "client_credentials", form["grant_type"])
	assert.Equal(t, auth.DefaultScope, form["scope"])
	assert.Equal(t, "client", form["client_id"])
	assert.Equal(t, "secret", form["client_secret"])
}

func TestSession_InvalidateFetchesOnce(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	cache := auth.NewMemoryCache()
	s := newSession(ts, cache)
	ctx := context.Background()

	first, err := s.Acquire(ctx)
	require.NoError(t, err)

	s.Invalidate()
	second, err := s.Acquire(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int32(2), ts.calls.Load())

	cached, err := cache.Get(ctx, "rest-main")
	require.NoError(t, err)
	assert.Equal(t, second.AccessToken, cached.AccessToken)
}

func TestSession_ExpiredTokenIsRefreshed(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := newSession(ts, nil, auth.WithClock(clock))
	ctx := context.Background()

	_, err := s.Acquire(ctx)
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	tok, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.AccessToken)
	assert.Equal(t, int32(2), ts.calls.Load())
}

func TestSession_UsesCachedToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	cache := auth.NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "rest-main", &auth.Token{
		AccessToken: "from-cache",
		Expiry:      time.Now().Add(time.Hour),
	}))

	tok, err := newSession(ts, cache).Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from-cache", tok.AccessToken)
	assert.Equal(t, int32(0), ts.calls.Load())
}

func TestSession_IgnoresExpiredCachedToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	cache := auth.NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "rest-main", &auth.Token{
		AccessToken: "old",
		Expiry:      time.Now().Add(-time.Minute),
	}))

	tok, err := newSession(ts, cache).Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
}

func TestSession_ConcurrentAcquireSingleRefresh(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	s := newSession(ts, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Acquire(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestSession_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-slow","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	s := newSession(&tokenServer{Server: srv}, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Acquire(first)
		firstErr <- err
	}()
	<-started

	second := make(chan *auth.Token, 1)
	go func() {
		tok, err := s.Acquire(context.Background())
		assert.NoError(t, err)
		second <- tok
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(release)

	select {
	case tok := <-second:
		require.NotNil(t, tok)
		assert.Equal(t, "tok-slow", tok.AccessToken)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller never got a token")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestSession_TokenRejected(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadRequest)
	s := newSession(ts, nil)

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrAuthenticationFailed))
}

func TestSession_TokenEndpointDown(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadGateway)
	s := newSession(ts, nil)

	_, err := s.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrRemoteFailure))
}

func TestSession_DoRetriesOnceAfter401(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		assert.Equal(t, "user", r.Header.Get("user_name"))
		assert.Equal(t, "pass", r.Header.Get("password"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	s := newSession(ts, nil)
	resp, err := s.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, api.URL, nil)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), apiCalls.Load())
	assert.Equal(t, int32(2), ts.calls.Load(), "one initial grant and exactly one refresh")
}

func TestSession_DoSecond401IsAuthFailure(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	var apiCalls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	s := newSession(ts, nil)
	_, err := s.Do(context.Background(), func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, api.URL, nil)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrAuthenticationFailed))
	assert.Equal(t, int32(2), apiCalls.Load())
	assert.Equal(t, int32(2), ts.calls.Load())
}
