// Package database wraps the PostgREST client with the endpoint, schema and
// headers it was built with.
package database

import (
	"github.com/supabase-community/postgrest-go"
)

// DefaultSchema is used when no schema is given.
const DefaultSchema = "public"

// Client is a PostgREST client bound to one set of credentials. Build a new
// one when the credentials change; headers are never updated in place.
type Client struct {
	url     string
	schema  string
	headers map[string]string
	rest    *postgrest.Client
}

// New builds a client for the REST endpoint url.
func New(url, schema string, headers map[string]string) *Client {
	if schema == "" {
		schema = DefaultSchema
	}
	h := copyHeaders(headers)
	return &Client{
		url:     url,
		schema:  schema,
		headers: h,
		rest:    postgrest.NewClient(url, schema, copyHeaders(h)),
	}
}

// URL returns the REST endpoint.
func (c *Client) URL() string { return c.url }

// Schema returns the schema queries run against.
func (c *Client) Schema() string { return c.schema }

// Headers returns a copy of the request headers.
func (c *Client) Headers() map[string]string { return copyHeaders(c.headers) }

// From starts a query on table.
func (c *Client) From(table string) *postgrest.QueryBuilder {
	return c.rest.From(table)
}

// Rest exposes the underlying PostgREST client.
func (c *Client) Rest() *postgrest.Client { return c.rest }

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
