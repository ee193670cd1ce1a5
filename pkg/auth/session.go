package auth

import (
	"time"

	"github.com/supabase-community/gotrue-go/types"
	"golang.org/x/oauth2"
)

// Event names a session lifecycle transition.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventSignedOut      Event = "SIGNED_OUT"
)

// ChangeFunc observes session changes. session is nil after sign-out and when
// no session could be restored.
type ChangeFunc func(event Event, session *Session)

// Session is the credential state of the signed-in user.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	// ExpiresAt is a unix timestamp in seconds; zero means unknown.
	ExpiresAt int64  `json:"expires_at"`
	UserEmail string `json:"user_email,omitempty"`
}

// ExpiryTime returns when the access token expires, or the zero time.
func (s Session) ExpiryTime() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Expired reports whether the access token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	exp := s.ExpiryTime()
	return !exp.IsZero() && !now.Before(exp)
}

// Token converts the session to an oauth2 token.
func (s Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiryTime(),
	}
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func sessionFromResponse(resp *types.TokenResponse, now time.Time) *Session {
	s := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
		UserEmail:    resp.User.Email,
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return s
}
