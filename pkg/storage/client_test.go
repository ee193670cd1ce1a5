package storage

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	headers := map[string]string{"apikey": "anon-key", "Authorization": "Bearer anon-key"}
	c := New("https://proj.supabase.co/storage/v1", headers)

	assert.Equal(t, "https://proj.supabase.co/storage/v1", c.URL())
	assert.Equal(t, headers, c.Headers())
	assert.NotNil(t, c.API())

	headers["Authorization"] = "Bearer changed"
	assert.Equal(t, "Bearer anon-key", c.Headers()["Authorization"])
}

func TestListBucketNames(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
		key  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("apikey")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"avatars","name":"avatars","public":true},{"id":"docs","name":"docs","public":false}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, map[string]string{"apikey": "anon-key", "Authorization": "Bearer user-token"})

	names, err := c.ListBucketNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"avatars", "docs"}, names)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer user-token", auth)
	assert.Equal(t, "anon-key", key)
}
