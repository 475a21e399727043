// Package identity signs users in through an OAuth provider and tracks their
// sessions.
package identity

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNoSession is returned when the presented token does not map to a
	// live session.
	ErrNoSession = errors.New("no session")
	// ErrNotConfigured is returned by every operation when sign-in is disabled.
	ErrNotConfigured = errors.New("identity service is not configured")
	// ErrUnknownProvider is returned for providers other than the registered ones.
	ErrUnknownProvider = errors.New("unknown identity provider")
	// ErrInvalidState is returned when a callback carries an unknown,
	// expired or already used OAuth state.
	ErrInvalidState = errors.New("invalid sign-in state")
)

// DefaultRedirect is where users land after sign-in when no usable target was given.
const DefaultRedirect = "/homepage"

// Session is an authenticated login.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PendingSignIn is what is remembered between redirecting the user to the
// provider and the provider calling back.
type PendingSignIn struct {
	Provider   string `json:"provider"`
	RedirectTo string `json:"redirect_to"`
}

// Principal is the identity asserted by a provider.
type Principal struct {
	Subject string
	Email   string
}

// SignInResult is produced by a completed sign-in.
type SignInResult struct {
	Token      string
	Session    *Session
	RedirectTo string
}

// SafeRedirect returns target if it is a path on this site and DefaultRedirect otherwise.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return DefaultRedirect
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DefaultRedirect
	}
	return target
}
