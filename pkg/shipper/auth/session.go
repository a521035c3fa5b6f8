package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tournevent/cttgateway/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is the identity provider of the REST protocol.
	DefaultTokenURL = "https://es-ctt-integration-clients-pool-ids.auth.eu-central-1.amazoncognito.com/oauth2/token"

	// DefaultScope is the scope requested for integration clients.
	DefaultScope = "urn:com:ctt-express:integration-clients:scopes:common/ALL"

	defaultSkew     = 30 * time.Second
	defaultLifetime = time.Hour
)

// Config holds the credentials of one REST account.
type Config struct {
	TokenURL     string
	Scope        string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	HTTPClient *http.Client
	// Skew is subtracted from the expiry when deciding reuse.
	Skew time.Duration
}

// Session owns the bearer token of one account.
//
// A token is taken from memory, then from the cache, and only fetched from
// the identity provider when neither holds a valid one. Concurrent refreshes
// are collapsed into a single grant request.
type Session struct {
	key    string
	config Config
	oauth  clientcredentials.Config
	cache  TokenCache
	logger *otelzap.Logger
	now    func() time.Time

	mu    sync.Mutex
	token *Token
	stale string
	group singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a session for the account identified by key.
// A nil cache means tokens are only kept in memory.
func NewSession(key string, cfg Config, cache TokenCache, logger *otelzap.Logger, opts ...Option) *Session {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Skew == 0 {
		cfg.Skew = defaultSkew
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	s := &Session{
		key:    key,
		config: cfg,
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       []string{cfg.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the cache key of the session.
func (s *Session) Key() string {
	return s.key
}

// Acquire returns a valid token, fetching a new one only when needed.
func (s *Session) Acquire(ctx context.Context) (*Token, error) {
	if tok := s.current(); tok != nil {
		return tok, nil
	}

	// The refresh is shared by every waiter, so it must outlive the caller
	// that started it. The HTTP client timeout still bounds it.
	shareCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.key, func() (any, error) {
		ctx := shareCtx
		if tok := s.current(); tok != nil {
			return tok, nil
		}

		cached, err := s.cache.Get(ctx, s.key)
		if err != nil {
			s.logger.Warn("Token cache read failed", zap.String("account", s.key), zap.Error(err))
		} else if s.usable(cached) {
			s.store(cached)
			return cached, nil
		}

		tok, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store(tok)
		if err := s.cache.Put(ctx, s.key, tok); err != nil {
			s.logger.Warn("Token cache write failed", zap.String("account", s.key), zap.Error(err))
		}
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Joined in-flight token refresh", zap.String("account", s.key))
		}
		return res.Val.(*Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate forces the next Acquire to fetch a new token.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		s.stale = s.token.AccessToken
		s.token = nil
	}
}

// expire invalidates only if access is still the current token, so that
// concurrent rejections of one token cause a single refresh.
func (s *Session) expire(access string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.AccessToken == access {
		s.stale = access
		s.token = nil
	}
}

// Do sends the request produced by build with the bearer token and the
// account user headers. On HTTP 401 the token is refreshed once and the
// request rebuilt and sent again; a second 401 is an authentication failure.
func (s *Session) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	resp, tok, err := s.send(ctx, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	s.logger.Info("Token rejected, refreshing", zap.String("account", s.key))
	s.expire(tok.AccessToken)

	resp, _, err = s.send(ctx, build)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, shipper.NewAuthError("request rejected after token refresh").
			WithStatusCode(http.StatusUnauthorized)
	}
	return resp, nil
}

func (s *Session) send(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, *Token, error) {
	tok, err := s.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	req, err := build(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("user_name", s.config.Username)
	req.Header.Set("password", s.config.Password)

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, shipper.NewRemoteError("HTTP_ERROR", "request failed").WithCause(err)
	}
	return resp, tok, nil
}

func (s *Session) fetch(ctx context.Context) (*Token, error) {
	s.logger.Info("Requesting access token", zap.String("account", s.key))

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.config.HTTPClient)
	ot, err := s.oauth.Token(ctx)
	if err != nil {
		s.logger.Error("Token request failed", zap.String("account", s.key), zap.Error(err))
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil && rErr.Response.StatusCode < 500 {
			return nil, shipper.NewAuthError("token request rejected").
				WithStatusCode(rErr.Response.StatusCode).WithCause(err)
		}
		return nil, shipper.NewRemoteError("TOKEN_ERROR", "token request failed").WithCause(err)
	}

	expiry := ot.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(defaultLifetime)
	}
	return &Token{AccessToken: ot.AccessToken, Expiry: expiry}, nil
}

func (s *Session) current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usableLocked(s.token) {
		return s.token
	}
	return nil
}

func (s *Session) usable(tok *Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usableLocked(tok)
}

func (s *Session) usableLocked(tok *Token) bool {
	return tok != nil && tok.AccessToken != s.stale && tok.Valid(s.now(), s.config.Skew)
}

func (s *Session) store(tok *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
