// Package workspace keeps the per-session state of the bookmark screen: the
// last good list, the add form, and a notice waiting to be shown.
package workspace

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinyakov/SmartBookmarks/internal/models"
)

var (
	// ErrBusy is returned when the same action on the same target is
	// already in flight for the session.
	ErrBusy = errors.New("another request for this action is in progress")
	// ErrNoWorkspace is returned for calls without a session id.
	ErrNoWorkspace = errors.New("no workspace for an anonymous request")
)

// Form holds the add form as last submitted.
type Form struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Blank reports whether title or url is empty after trimming.
func (f Form) Blank() bool {
	return strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.URL) == ""
}

// Input converts the form for the bookmark service.
func (f Form) Input() models.BookmarkInput {
	return models.BookmarkInput{Title: f.Title, URL: f.URL, Description: f.Description}
}

// State is what the bookmark screen shows for one session.
type State struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
	Form      Form              `json:"form"`
	// Notice is shown once, then cleared by TakeNotice.
	Notice string `json:"notice,omitempty"`
	// Unconfigured is set while the data service is not configured.
	Unconfigured bool      `json:"unconfigured,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *State) clone() *State {
	c := *s
	if s.Bookmarks != nil {
		c.Bookmarks = append([]models.Bookmark(nil), s.Bookmarks...)
	}
	return &c
}

// Store persists workspace states and in-flight markers.
type Store interface {
	// Load returns the session's state, or a fresh one if none is stored.
	Load(ctx context.Context, sessionID string) (*State, error)
	// Update applies fn to the current state and stores the result
	// atomically, so concurrent actions of one session never overwrite each
	// other's fields. fn may run more than once and must only set fields.
	Update(ctx context.Context, sessionID string, fn func(*State)) (*State, error)
	Delete(ctx context.Context, sessionID string) error
	// Acquire marks key as in flight for at most ttl. It reports false if
	// key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
