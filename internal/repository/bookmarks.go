// Package repository provides owner-scoped bookmark persistence on top of the
// remote data service.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/SmartBookmarks/internal/dataservice"
	"github.com/atinyakov/SmartBookmarks/internal/models"
)

const bookmarksTable = "bookmarks"

var bookmarkColumns = []string{"id", "title", "url", "description", "created_at"}

// ErrMalformedRow is returned when the data service hands back a record that
// does not have the shape of a bookmark.
var ErrMalformedRow = errors.New("malformed bookmark row")

// BookmarkRepository implements bookmark persistence against the data service.
type BookmarkRepository struct {
	// Client is the remote data service.
	Client dataservice.Client
}

// NewBookmarkRepository creates a BookmarkRepository using the provided client.
func NewBookmarkRepository(client dataservice.Client) *BookmarkRepository {
	return &BookmarkRepository{Client: client}
}

// ListByOwner fetches the user's bookmarks, newest first.
//
//	ctx:    context for cancellation and deadlines
//	userID: identifier of the owner
//
// Returns an empty slice when the user has no bookmarks.
func (r *BookmarkRepository) ListByOwner(ctx context.Context, userID string) ([]models.Bookmark, error) {
	rows, err := r.Client.Select(ctx, bookmarksTable, bookmarkColumns,
		[]dataservice.Filter{dataservice.Eq("user_id", userID)},
		&dataservice.Order{Column: "created_at", Descending: true})
	if err != nil {
		return nil, fmt.Errorf("ListByOwner failed: %w", err)
	}

	bookmarks := make([]models.Bookmark, 0, len(rows))
	for i, row := range rows {
		b, err := bookmarkFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("ListByOwner row %d: %w", i, err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

// Create inserts one bookmark owned by userID. The id and creation time are
// assigned by the data service. A nil description is stored as NULL.
func (r *BookmarkRepository) Create(ctx context.Context, userID, title, url string, description *string) error {
	var desc any
	if description != nil {
		desc = *description
	}

	err := r.Client.Insert(ctx, bookmarksTable, []dataservice.Row{{
		"user_id":     userID,
		"title":       title,
		"url":         url,
		"description": desc,
	}})
	if err != nil {
		return fmt.Errorf("Create failed: %w", err)
	}
	return nil
}

// DeleteByOwner removes the bookmark with the given id if it belongs to
// userID. Deleting a missing or foreign id is not an error.
func (r *BookmarkRepository) DeleteByOwner(ctx context.Context, userID, id string) error {
	err := r.Client.Delete(ctx, bookmarksTable, []dataservice.Filter{
		dataservice.Eq("id", id),
		dataservice.Eq("user_id", userID),
	})
	if err != nil {
		return fmt.Errorf("DeleteByOwner failed: %w", err)
	}
	return nil
}

func bookmarkFromRow(row dataservice.Row) (models.Bookmark, error) {
	var b models.Bookmark
	var ok bool

	if b.ID, ok = text(row["id"]); !ok || b.ID == "" {
		return b, fmt.Errorf("%w: id", ErrMalformedRow)
	}
	if b.Title, ok = text(row["title"]); !ok || b.Title == "" {
		return b, fmt.Errorf("%w: title", ErrMalformedRow)
	}
	if b.URL, ok = text(row["url"]); !ok || b.URL == "" {
		return b, fmt.Errorf("%w: url", ErrMalformedRow)
	}

	if v := row["description"]; v != nil {
		d, ok := text(v)
		if !ok {
			return b, fmt.Errorf("%w: description", ErrMalformedRow)
		}
		b.Description = &d
	}

	if b.CreatedAt, ok = timestamp(row["created_at"]); !ok {
		return b, fmt.Errorf("%w: created_at", ErrMalformedRow)
	}
	return b, nil
}

func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
}

func timestamp(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s, ok := text(v)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
