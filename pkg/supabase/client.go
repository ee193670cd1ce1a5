// Package supabase is a single client handle over the Supabase auth, REST,
// realtime and storage services. One project URL and API key derive every
// endpoint, and the current session token is carried to the REST and storage
// clients each time they are built.
package supabase

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/auth"
	"github.com/felixgeelhaar/supabase-go/pkg/database"
	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/felixgeelhaar/supabase-go/pkg/realtime"
	"github.com/felixgeelhaar/supabase-go/pkg/storage"
	"golang.org/x/oauth2"
)

// Options configures New. The zero value is not the default; use
// DefaultOptions or pass nil.
type Options struct {
	Schema               string
	AutoRefreshToken     bool
	ListenForAuthChanges bool

	// RefreshMargin is passed to the auth client; zero uses its default.
	RefreshMargin time.Duration
	SessionStore  auth.SessionStore
	StorageKey    string
	// HTTPClient is used for auth traffic.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    observability.Metrics
	// OnAuthStateChange is called for every session event while the client
	// listens for auth changes.
	OnAuthStateChange auth.ChangeFunc
}

// DefaultOptions returns the defaults used when New is given nil.
func DefaultOptions() Options {
	return Options{
		Schema:               database.DefaultSchema,
		AutoRefreshToken:     true,
		ListenForAuthChanges: false,
	}
}

// Client is the facade. Auth returns a long-lived client; Database and
// Storage build a new client on every call.
type Client struct {
	endpoints Endpoints
	apiKey    string
	schema    string
	auth      *auth.Client
	bearer    oauth2.TokenSource
	logger    *slog.Logger
	metrics   observability.Metrics

	mu         sync.Mutex
	registered bool
}

// New builds a client for the project at baseURL. It never fails; bad input
// surfaces on first network use.
func New(baseURL, apiKey string, opts *Options) *Client {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Schema == "" {
		o.Schema = database.DefaultSchema
	}

	logger := observability.OrDefault(o.Logger)
	metrics := observability.OrNoop(o.Metrics)
	endpoints := DeriveEndpoints(baseURL)

	authClient := auth.New(auth.Config{
		URL:              endpoints.AuthURL,
		Headers:          map[string]string{HeaderAPIKey: apiKey},
		AutoRefreshToken: o.AutoRefreshToken,
		RefreshMargin:    o.RefreshMargin,
		Store:            o.SessionStore,
		StorageKey:       o.StorageKey,
		HTTPClient:       o.HTTPClient,
		Logger:           logger,
		Metrics:          metrics,
	})

	c := &Client{
		endpoints: endpoints,
		apiKey:    apiKey,
		schema:    o.Schema,
		auth:      authClient,
		bearer:    bearerSource{auth: authClient, apiKey: apiKey},
		logger:    logger.With("component", "supabase"),
		metrics:   metrics,
	}

	if o.ListenForAuthChanges {
		st := &listenerState{
			logger:   c.logger,
			metrics:  metrics,
			onChange: o.OnAuthStateChange,
		}
		authClient.OnSessionChange(st.handle)
		c.registered = true
	}
	return c
}

// Auth returns the auth client. It is the same instance for the lifetime of c.
func (c *Client) Auth() *auth.Client { return c.auth }

// Database returns a REST client carrying the current bearer token.
func (c *Client) Database() *database.Client {
	c.countSynthesis("database")
	return database.New(c.endpoints.RestURL, c.schema, c.authHeaders())
}

// Storage returns a storage client carrying the current bearer token.
func (c *Client) Storage() *storage.Client {
	c.countSynthesis("storage")
	return storage.New(c.endpoints.StorageURL, c.authHeaders())
}

// realtimeClient is authenticated with the API key only.
func (c *Client) realtimeClient() *realtime.Client {
	c.countSynthesis("realtime")
	return realtime.New(c.endpoints.RealtimeURL, map[string]string{HeaderAPIKey: c.apiKey})
}

// Endpoints returns the derived service URLs.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Schema returns the database schema.
func (c *Client) Schema() string { return c.schema }

// ListeningForAuthChanges reports whether the auth listener is installed.
func (c *Client) ListeningForAuthChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

// Close removes the auth listener. It is safe to call more than once. Auth
// refresh timers are stopped by Auth().Close, not here.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.registered {
		return
	}
	c.auth.OnSessionChange(nil)
	c.registered = false
}

func (c *Client) countSynthesis(kind string) {
	c.metrics.Counter(observability.MetricClientsSynthesized, 1, observability.T("client", kind))
}

// listenerState is what the auth listener needs. It does not reference the
// Client, so the auth client never keeps the facade alive.
type listenerState struct {
	logger   *slog.Logger
	metrics  observability.Metrics
	onChange auth.ChangeFunc
}

// handle runs on every session event. Database and Storage read the session
// on each call, so there are no cached clients to update here.
func (l *listenerState) handle(event auth.Event, s *auth.Session) {
	l.logger.Debug("auth state changed", "event", string(event), "signed_in", s != nil)
	l.metrics.Counter(observability.MetricAuthStateChanges, 1, observability.T("event", string(event)))
	if l.onChange != nil {
		l.onChange(event, s)
	}
}
