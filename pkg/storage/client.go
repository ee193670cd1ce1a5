// Package storage wraps the Supabase Storage client with the endpoint and
// headers it was built with.
package storage

import (
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// Client is a storage client bound to one set of credentials.
type Client struct {
	url     string
	headers map[string]string
	api     *storage_go.Client
}

// New builds a client for the storage endpoint url. The bearer token is taken
// from the Authorization header.
func New(url string, headers map[string]string) *Client {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	token := strings.TrimPrefix(h["Authorization"], "Bearer ")
	return &Client{
		url:     url,
		headers: h,
		api:     storage_go.NewClient(url, token, h),
	}
}

// URL returns the storage endpoint.
func (c *Client) URL() string { return c.url }

// Headers returns a copy of the request headers.
func (c *Client) Headers() map[string]string {
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// API exposes the underlying storage client for bucket and object operations.
func (c *Client) API() *storage_go.Client { return c.api }

// ListBucketNames returns the names of the buckets visible to the credentials.
func (c *Client) ListBucketNames() ([]string, error) {
	buckets, err := c.api.ListBuckets()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}
