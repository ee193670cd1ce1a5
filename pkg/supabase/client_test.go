package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/auth"
	"github.com/felixgeelhaar/supabase-go/pkg/database"
	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testURL = "https://proj.supabase.co"
	testKey = "anon-key"
)

// fakeProject serves the auth token, REST and storage endpoints and records
// the Authorization header seen per path.
type fakeProject struct {
	*httptest.Server
	mu   sync.Mutex
	seen map[string]string
}

func newFakeProject(t *testing.T) *fakeProject {
	t.Helper()
	f := &fakeProject{seen: map[string]string{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProject) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.seen[r.URL.Path] = r.Header.Get("Authorization")
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/v1/token":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "user-token",
			"refresh_token": "refresh-token",
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"user":          map[string]any{"email": "user@example.com"},
		})
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/rest/v1/todos":
		_, _ = w.Write([]byte(`[{"id":1}]`))
	case "/storage/v1/bucket":
		_, _ = w.Write([]byte(`[{"id":"avatars","name":"avatars"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProject) authorization(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[path]
}

func setSession(t *testing.T, c *Client, token string) {
	t.Helper()
	require.NoError(t, c.Auth().SetSession(context.Background(), auth.Session{AccessToken: token, TokenType: "bearer"}))
}

func TestNew(t *testing.T) {
	t.Run("nil options use defaults", func(t *testing.T) {
		c := New(testURL, testKey, nil)
		defer c.Close()

		assert.Equal(t, DeriveEndpoints(testURL), c.Endpoints())
		assert.Equal(t, "public", c.Schema())
		assert.True(t, c.Auth().AutoRefreshToken())
		assert.False(t, c.ListeningForAuthChanges())
	})

	t.Run("auth client gets auth url and api key only", func(t *testing.T) {
		c := New(testURL, testKey, nil)

		assert.Equal(t, testURL+"/auth/v1", c.Auth().URL())
		assert.Equal(t, map[string]string{"apikey": testKey}, c.Auth().Headers())
	})

	t.Run("options are honoured", func(t *testing.T) {
		c := New(testURL, testKey, &Options{Schema: "private", AutoRefreshToken: false})

		assert.Equal(t, "private", c.Schema())
		assert.Equal(t, "private", c.Database().Schema())
		assert.False(t, c.Auth().AutoRefreshToken())
	})

	t.Run("empty schema falls back to public", func(t *testing.T) {
		c := New(testURL, testKey, &Options{})
		assert.Equal(t, "public", c.Schema())
	})

	t.Run("auth is a stable instance", func(t *testing.T) {
		c := New(testURL, testKey, nil)
		assert.Same(t, c.Auth(), c.Auth())
	})
}

func TestDatabaseHeaders(t *testing.T) {
	t.Run("api key is the bearer without a session", func(t *testing.T) {
		c := New(testURL, testKey, nil)

		db := c.Database()
		assert.Equal(t, testURL+"/rest/v1", db.URL())
		assert.Equal(t, map[string]string{
			"apikey":        testKey,
			"Authorization": "Bearer " + testKey,
		}, db.Headers())
	})

	t.Run("new session is seen by the next read only", func(t *testing.T) {
		c := New(testURL, testKey, nil)

		before := c.Database()
		setSession(t, c, "T")
		after := c.Database()

		assert.Equal(t, "Bearer T", after.Headers()["Authorization"])
		assert.Equal(t, testKey, after.Headers()["apikey"])
		assert.Equal(t, "Bearer "+testKey, before.Headers()["Authorization"])
	})

	t.Run("consecutive reads are equal but distinct", func(t *testing.T) {
		c := New(testURL, testKey, nil)
		setSession(t, c, "T")

		a, b := c.Database(), c.Database()
		assert.Equal(t, a.Headers(), b.Headers())
		assert.NotSame(t, a, b)
	})

	t.Run("sign out falls back to the api key", func(t *testing.T) {
		f := newFakeProject(t)
		c := New(f.URL, testKey, nil)
		setSession(t, c, "T")
		setSession(t, c, "T2")
		assert.Equal(t, "Bearer T2", c.Database().Headers()["Authorization"])

		require.NoError(t, c.Auth().SignOut(context.Background()))
		assert.Equal(t, "Bearer T2", f.authorization("/auth/v1/logout"))
		assert.Equal(t, "Bearer "+testKey, c.Database().Headers()["Authorization"])
	})
}

func TestStorageHeaders(t *testing.T) {
	c := New(testURL, testKey, nil)

	before := c.Storage()
	assert.Equal(t, testURL+"/storage/v1", before.URL())
	assert.Equal(t, "Bearer "+testKey, before.Headers()["Authorization"])

	setSession(t, c, "T")

	assert.Equal(t, "Bearer T", c.Storage().Headers()["Authorization"])
	assert.Equal(t, "Bearer "+testKey, before.Headers()["Authorization"])
}

func TestRealtimeUsesAPIKeyOnly(t *testing.T) {
	f := newFakeProject(t)
	c := New(f.URL, testKey, &Options{ListenForAuthChanges: true})
	defer c.Close()

	check := func() {
		rt := c.realtimeClient()
		assert.Equal(t, f.URL+"/realtime/v1", rt.Endpoint())
		assert.Equal(t, map[string]string{"apikey": testKey}, rt.Params())
	}

	check()
	setSession(t, c, "T1")
	check()
	setSession(t, c, "T2")
	check()
	require.NoError(t, c.Auth().SignOut(context.Background()))
	check()
}

func TestAuthListener(t *testing.T) {
	t.Run("not installed by default", func(t *testing.T) {
		c := New(testURL, testKey, nil)

		assert.False(t, c.Auth().HasSessionChangeListener())
		assert.NotPanics(t, func() { setSession(t, c, "T") })
	})

	t.Run("installed when enabled", func(t *testing.T) {
		metrics := observability.NewInMemoryMetrics()
		var events []auth.Event
		c := New(testURL, testKey, &Options{
			ListenForAuthChanges: true,
			Metrics:              metrics,
			OnAuthStateChange: func(e auth.Event, _ *auth.Session) {
				events = append(events, e)
			},
		})
		defer c.Close()

		assert.True(t, c.Auth().HasSessionChangeListener())
		assert.True(t, c.ListeningForAuthChanges())

		setSession(t, c, "T")

		assert.Equal(t, []auth.Event{auth.EventSignedIn}, events)
		assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricAuthStateChanges, observability.T("event", "SIGNED_IN")))
	})

	t.Run("close clears the slot", func(t *testing.T) {
		metrics := observability.NewInMemoryMetrics()
		calls := 0
		c := New(testURL, testKey, &Options{
			ListenForAuthChanges: true,
			Metrics:              metrics,
			OnAuthStateChange:    func(auth.Event, *auth.Session) { calls++ },
		})

		c.Close()
		assert.False(t, c.Auth().HasSessionChangeListener())
		assert.False(t, c.ListeningForAuthChanges())

		assert.NotPanics(t, func() { setSession(t, c, "T") })
		assert.Equal(t, 0, calls)
		assert.Equal(t, int64(0), metrics.GetCounter(observability.MetricAuthStateChanges, observability.T("event", "SIGNED_IN")))

		assert.NotPanics(t, c.Close)
	})

	t.Run("close without listener leaves other listeners alone", func(t *testing.T) {
		c := New(testURL, testKey, nil)
		c.Auth().OnSessionChange(func(auth.Event, *auth.Session) {})

		c.Close()
		assert.True(t, c.Auth().HasSessionChangeListener())
	})
}

func TestSynthesisMetrics(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	c := New(testURL, testKey, &Options{Metrics: metrics})

	c.Database()
	c.Database()
	c.Storage()
	c.realtimeClient()

	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricClientsSynthesized, observability.T("client", "database")))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricClientsSynthesized, observability.T("client", "storage")))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricClientsSynthesized, observability.T("client", "realtime")))
}

func TestBearerSource(t *testing.T) {
	c := New(testURL, testKey, nil)

	tok, err := c.bearer.Token()
	require.NoError(t, err)
	assert.Equal(t, testKey, tok.AccessToken)

	setSession(t, c, "T")
	tok, err = c.bearer.Token()
	require.NoError(t, err)
	assert.Equal(t, "T", tok.AccessToken)
}

func TestEndToEnd(t *testing.T) {
	f := newFakeProject(t)
	c := New(f.URL, testKey, &Options{
		Schema:               database.DefaultSchema,
		AutoRefreshToken:     false,
		ListenForAuthChanges: true,
	})
	defer c.Close()

	_, _, err := c.Database().From("todos").Select("*", "", false).Execute()
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+testKey, f.authorization("/rest/v1/todos"))

	_, err = c.Auth().SignInWithPassword(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	_, _, err = c.Database().From("todos").Select("*", "", false).Execute()
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", f.authorization("/rest/v1/todos"))

	names, err := c.Storage().ListBucketNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"avatars"}, names)
	assert.Equal(t, "Bearer user-token", f.authorization("/storage/v1/bucket"))
}
