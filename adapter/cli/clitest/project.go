// Package clitest provides a fake Supabase project for command tests.
package clitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const (
	APIKey    = "anon-key"
	Email     = "user@example.com"
	Password  = "secret"
	UserToken = "user-token"
)

// Project serves the auth, REST and storage endpoints the CLI uses and
// records the Authorization header seen per path.
type Project struct {
	*httptest.Server

	mu      sync.Mutex
	seen    map[string]string
	queries map[string]string
}

// NewProject starts a project server that is closed with the test.
func NewProject(t *testing.T) *Project {
	t.Helper()
	p := &Project{seen: map[string]string{}, queries: map[string]string{}}
	p.Server = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.Close)
	return p
}

func (p *Project) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.seen[r.URL.Path] = r.Header.Get("Authorization")
	p.queries[r.URL.Path] = r.URL.RawQuery
	p.mu.Unlock()

	if r.Header.Get("apikey") != APIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/v1/token":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Query().Get("grant_type") == "password" && body["password"] != Password {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  UserToken,
			"refresh_token": "refresh-token",
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"user":          map[string]any{"email": Email},
		})
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/rest/v1/todos":
		_, _ = w.Write([]byte(`[{"id":1,"title":"write tests"}]`))
	case "/storage/v1/bucket":
		_, _ = w.Write([]byte(`[{"id":"avatars","name":"avatars"},{"id":"docs","name":"docs"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Authorization returns the last Authorization header sent to path.
func (p *Project) Authorization(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[path]
}

// Query returns the last raw query sent to path.
func (p *Project) Query(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[path]
}
