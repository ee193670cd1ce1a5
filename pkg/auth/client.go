// Package auth is the session-owning authentication client. It wraps the
// GoTrue API, keeps the current session, notifies a single change listener
// and refreshes the access token before it expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"golang.org/x/oauth2"
)

const (
	DefaultStorageKey    = "supabase.auth.token"
	DefaultRefreshMargin = 30 * time.Second
)

var (
	ErrNoSession      = errors.New("auth: no active session")
	ErrInvalidSession = errors.New("auth: session has no access token")
	// ErrSessionChanged is returned when the session was replaced while a
	// refresh was in flight. The refresh result is discarded.
	ErrSessionChanged = errors.New("auth: session changed during refresh")
)

// Config configures New.
type Config struct {
	// URL is the GoTrue base URL, e.g. https://proj.supabase.co/auth/v1.
	URL string
	// Headers must carry "apikey".
	Headers          map[string]string
	AutoRefreshToken bool
	// RefreshMargin is how long before expiry the token is refreshed.
	RefreshMargin time.Duration
	// Store persists the session; nil keeps it in memory only.
	Store      SessionStore
	StorageKey string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    observability.Metrics
}

// Client owns the authentication session.
type Client struct {
	api        gotrue.Client
	url        string
	headers    map[string]string
	store      SessionStore
	storageKey string
	logger     *slog.Logger
	metrics    observability.Metrics

	autoRefreshToken bool
	refreshMargin    time.Duration

	mu           sync.RWMutex
	session      *Session
	generation   uint64
	listener     ChangeFunc
	refreshTimer *time.Timer
	closed       bool

	// persistMu keeps store writes in the order of the in-memory updates.
	persistMu sync.Mutex
	// refreshMu is held while a background refresh runs.
	refreshMu sync.Mutex
}

// New builds a client. It performs no network calls.
func New(cfg Config) *Client {
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	api := gotrue.New("", headers["apikey"]).WithCustomGoTrueURL(cfg.URL)
	if cfg.HTTPClient != nil {
		api = api.WithClient(*cfg.HTTPClient)
	}

	c := &Client{
		api:              api,
		url:              cfg.URL,
		headers:          headers,
		store:            cfg.Store,
		storageKey:       cfg.StorageKey,
		logger:           observability.OrDefault(cfg.Logger).With("component", "auth"),
		metrics:          observability.OrNoop(cfg.Metrics),
		autoRefreshToken: cfg.AutoRefreshToken,
		refreshMargin:    cfg.RefreshMargin,
	}
	if c.storageKey == "" {
		c.storageKey = DefaultStorageKey
	}
	if c.refreshMargin <= 0 {
		c.refreshMargin = DefaultRefreshMargin
	}
	return c
}

// URL returns the GoTrue base URL.
func (c *Client) URL() string { return c.url }

// Headers returns a copy of the static headers the client was built with.
func (c *Client) Headers() map[string]string {
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// AutoRefreshToken reports whether sessions are refreshed in the background.
func (c *Client) AutoRefreshToken() bool { return c.autoRefreshToken }

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// AccessToken returns the current access token, or "" without a session.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// Token implements oauth2.TokenSource over the current session.
func (c *Client) Token() (*oauth2.Token, error) {
	s := c.Session()
	if s == nil || s.AccessToken == "" {
		return nil, ErrNoSession
	}
	return s.Token(), nil
}

var _ oauth2.TokenSource = (*Client)(nil)

// OnSessionChange installs fn as the change listener, replacing any previous
// one. A nil fn clears the slot.
func (c *Client) OnSessionChange(fn ChangeFunc) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// HasSessionChangeListener reports whether the listener slot is set.
func (c *Client) HasSessionChangeListener() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listener != nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := observability.TimeOperationResult(c.logger, c.metrics, "auth.sign_in", func() (*types.TokenResponse, error) {
		return c.api.SignInWithEmailPassword(email, password)
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s := sessionFromResponse(resp, time.Now())
	c.apply(ctx, EventSignedIn, s)
	return s.clone(), nil
}

// SetSession adopts a session obtained elsewhere, e.g. from a magic link
// redirect, and reports it as a sign-in.
func (c *Client) SetSession(ctx context.Context, s Session) error {
	if s.AccessToken == "" {
		return ErrInvalidSession
	}
	c.apply(ctx, EventSignedIn, s.clone())
	return nil
}

// RefreshSession trades the current refresh token for a new session. If the
// session is replaced while the request is in flight, the result is dropped
// and ErrSessionChanged returned.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	return c.refresh(ctx, "manual")
}

func (c *Client) refresh(ctx context.Context, trigger string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, gen := c.snapshot()
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoSession
	}
	s, err := c.exchange(current.RefreshToken, trigger)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if !c.commit(ctx, EventTokenRefreshed, s, &gen) {
		c.logger.DebugContext(ctx, "dropping refreshed session", "trigger", trigger)
		return nil, ErrSessionChanged
	}
	return s.clone(), nil
}

// exchange calls the token endpoint with a refresh token.
func (c *Client) exchange(refreshToken, trigger string) (*Session, error) {
	timer := observability.StartTimer("auth.refresh").
		WithLogger(c.logger).
		WithMetrics(c.metrics).
		WithTags(observability.T("trigger", trigger))
	resp, err := c.api.RefreshToken(refreshToken)
	timer.Stop(err)
	if err != nil {
		return nil, err
	}
	return sessionFromResponse(resp, time.Now()), nil
}

// SignOut revokes the session server side and clears it locally. The local
// session is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Session()
	var err error
	if current != nil && current.AccessToken != "" {
		_, err = observability.TimeOperationResult(c.logger, c.metrics, "auth.sign_out", func() (struct{}, error) {
			return struct{}{}, c.api.WithToken(current.AccessToken).Logout()
		})
	}
	c.apply(ctx, EventSignedOut, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// RestoreSession loads the persisted session, if any, and reports it as the
// initial session. A missing session is not an error. With AutoRefreshToken,
// an expired session is refreshed before it is installed; if that fails the
// stored session is cleared and the error returned.
func (c *Client) RestoreSession(ctx context.Context) (*Session, error) {
	_, gen := c.snapshot()

	var s *Session
	if c.store != nil {
		loaded, err := c.store.Load(ctx, c.storageKey)
		switch {
		case errors.Is(err, ErrSessionNotFound):
		case err != nil:
			return nil, fmt.Errorf("restore session: %w", err)
		default:
			s = loaded
		}
	}

	var refreshErr error
	if s != nil && c.autoRefreshToken && s.RefreshToken != "" && s.Expired(time.Now()) {
		refreshed, err := c.exchange(s.RefreshToken, "restore")
		if err != nil {
			refreshErr = fmt.Errorf("refresh restored session: %w", err)
		}
		s = refreshed
	}

	if !c.commit(ctx, EventInitialSession, s, &gen) {
		return nil, ErrSessionChanged
	}
	if refreshErr != nil {
		return nil, refreshErr
	}
	return s.clone(), nil
}

// Close stops background refreshes and waits for one already running. The
// session and listener are kept. Close must not be called from the listener.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopRefreshLocked()
	c.mu.Unlock()

	c.refreshMu.Lock()
	c.refreshMu.Unlock()
}

func (c *Client) snapshot() (*Session, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone(), c.generation
}

// apply replaces the session unconditionally.
func (c *Client) apply(ctx context.Context, event Event, s *Session) {
	c.commit(ctx, event, s, nil)
}

// commit replaces the session, persists it and notifies the listener. With a
// non-nil expect it does nothing unless the session generation still equals
// *expect.
func (c *Client) commit(ctx context.Context, event Event, s *Session, expect *uint64) bool {
	c.persistMu.Lock()
	c.mu.Lock()
	if expect != nil && *expect != c.generation {
		c.mu.Unlock()
		c.persistMu.Unlock()
		return false
	}
	c.generation++
	c.session = s
	c.scheduleRefreshLocked(s)
	listener := c.listener
	c.mu.Unlock()

	c.persist(ctx, s)
	c.persistMu.Unlock()

	c.metrics.Counter(observability.MetricAuthEvents, 1, observability.T("event", string(event)))
	c.logger.DebugContext(ctx, "session changed", "event", string(event), "signed_in", s != nil)

	if listener != nil {
		listener(event, s.clone())
	}
	return true
}

func (c *Client) persist(ctx context.Context, s *Session) {
	if c.store == nil {
		return
	}
	var err error
	if s == nil {
		err = c.store.Delete(ctx, c.storageKey)
	} else {
		err = c.store.Save(ctx, c.storageKey, *s)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "failed to persist session", "key", c.storageKey, "error", err)
	}
}
