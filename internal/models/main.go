// Package models defines the core data structures for bookmarks and their owners.
package models

import (
	"strings"
	"time"
)

// Bookmark is one saved link owned by exactly one user.
type Bookmark struct {
	// ID is the unique identifier assigned by the data service on creation.
	ID string `json:"id"`
	// Title is the user-visible name of the link. Never empty.
	Title string `json:"title"`
	// URL is the saved address. Never empty, not validated beyond that.
	URL string `json:"url"`
	// Description is optional; nil means no description was given.
	Description *string `json:"description,omitempty"`
	// CreatedAt is assigned by the data service and is the only ordering key.
	CreatedAt time.Time `json:"created_at"`
}

// BookmarkInput carries the raw values a user submitted for a new bookmark.
type BookmarkInput struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Normalize trims every field and reports whether the input may be stored.
// The returned description is nil when it is empty after trimming.
func (in BookmarkInput) Normalize() (title, url string, description *string, ok bool) {
	title = strings.TrimSpace(in.Title)
	url = strings.TrimSpace(in.URL)
	if d := strings.TrimSpace(in.Description); d != "" {
		description = &d
	}
	return title, url, description, title != "" && url != ""
}
