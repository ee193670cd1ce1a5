package supabase

import (
	"errors"

	"github.com/felixgeelhaar/supabase-go/pkg/auth"
	"golang.org/x/oauth2"
)

// Header names sent to the REST and storage services.
const (
	HeaderAPIKey        = "apikey"
	HeaderAuthorization = "Authorization"
)

// bearerSource yields the session access token, or the API key when no
// session is active. It reads the session on every call and caches nothing.
type bearerSource struct {
	auth   *auth.Client
	apiKey string
}

var _ oauth2.TokenSource = bearerSource{}

func (b bearerSource) Token() (*oauth2.Token, error) {
	tok, err := b.auth.Token()
	if errors.Is(err, auth.ErrNoSession) {
		return &oauth2.Token{AccessToken: b.apiKey, TokenType: "Bearer"}, nil
	}
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// authHeaders builds a fresh header set carrying the current bearer.
func (c *Client) authHeaders() map[string]string {
	bearer := c.apiKey
	if tok, err := c.bearer.Token(); err == nil && tok.AccessToken != "" {
		bearer = tok.AccessToken
	}
	return map[string]string{
		HeaderAPIKey:        c.apiKey,
		HeaderAuthorization: "Bearer " + bearer,
	}
}
