// Package middleware provides HTTP middlewares for session gating and logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/identity"
)

// SessionCookie carries the session token in browsers.
const SessionCookie = "sb_session"

type ctxKey string

const outcomeKey ctxKey = "session_outcome"

// Status is the result of checking a request for a session.
type Status int

const (
	Unauthenticated Status = iota
	Authenticated
	// Unconfigured means sign-in is disabled, so no session can exist.
	Unconfigured
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unconfigured:
		return "unconfigured"
	default:
		return "unauthenticated"
	}
}

// Outcome is what the gate learned about a request.
type Outcome struct {
	Status    Status
	UserID    string
	SessionID string
}

// SessionChecker resolves a session token.
type SessionChecker interface {
	CurrentSession(ctx context.Context, token string) (*identity.Session, error)
}

// Gate answers "is there a signed-in user?" for each request. It never
// decides what happens next; the Require* middlewares do.
type Gate struct {
	sessions SessionChecker
	log      *zap.Logger
}

// NewGate creates a Gate backed by sessions.
func NewGate(sessions SessionChecker, log *zap.Logger) *Gate {
	return &Gate{sessions: sessions, log: log}
}

// TokenFromRequest returns the session token from the cookie, or from an
// "Authorization: Bearer" header when there is no cookie.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Authenticate checks the request's session. A failing check is logged and
// reported as Unauthenticated.
func (g *Gate) Authenticate(r *http.Request) Outcome {
	sess, err := g.sessions.CurrentSession(r.Context(), TokenFromRequest(r))
	switch {
	case err == nil:
		return Outcome{Status: Authenticated, UserID: sess.UserID, SessionID: sess.ID}
	case errors.Is(err, identity.ErrNotConfigured):
		return Outcome{Status: Unconfigured}
	case errors.Is(err, identity.ErrNoSession):
		return Outcome{Status: Unauthenticated}
	default:
		g.log.Warn("session check failed", zap.Error(err), zap.String("path", r.URL.Path))
		return Outcome{Status: Unauthenticated}
	}
}

// Middleware runs Authenticate and stores the outcome on the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := g.Authenticate(r)
		next.ServeHTTP(w, r.WithContext(WithOutcome(r.Context(), out)))
	})
}

// WithOutcome returns ctx carrying out.
func WithOutcome(ctx context.Context, out Outcome) context.Context {
	return context.WithValue(ctx, outcomeKey, out)
}

// OutcomeFromContext returns the stored outcome, Unauthenticated if none.
func OutcomeFromContext(ctx context.Context) Outcome {
	if out, ok := ctx.Value(outcomeKey).(Outcome); ok {
		return out
	}
	return Outcome{Status: Unauthenticated}
}

// GetUserIDFromContext extracts the signed-in user's ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	return OutcomeFromContext(ctx).UserID
}

// GetSessionIDFromContext extracts the session ID from the request context.
func GetSessionIDFromContext(ctx context.Context) string {
	return OutcomeFromContext(ctx).SessionID
}

// RequireSession sends visitors without a session to the login screen.
// When sign-in is not configured the request passes so the screen can
// render its degraded state.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if OutcomeFromContext(r.Context()).Status == Unauthenticated {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSessionAPI answers 401 unless the request is authenticated.
func RequireSessionAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if OutcomeFromContext(r.Context()).Status != Authenticated {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectAuthenticated sends signed-in users away from the login screen.
func RedirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if OutcomeFromContext(r.Context()).Status == Authenticated {
			http.Redirect(w, r, identity.DefaultRedirect, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
