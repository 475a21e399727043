// Package service provides the bookmark business logic, delegating
// persistence to a repository interface.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/SmartBookmarks/internal/metrics"
	"github.com/atinyakov/SmartBookmarks/internal/models"
)

var (
	// ErrInvalidBookmark is returned when title or url is empty after trimming.
	ErrInvalidBookmark = errors.New("title and url are required")
	// ErrNoUser is returned for operations without an owner.
	ErrNoUser = errors.New("no user")
	// ErrNoBookmark is returned by Delete for an empty bookmark id.
	ErrNoBookmark = errors.New("no bookmark id")
	// ErrRefresh marks a successful mutation whose follow-up list failed.
	ErrRefresh = errors.New("refresh after mutation failed")
)

// MutationError reports a failed insert or delete. Error returns the data
// service's own message without the wrapping added on the way up; the full
// chain is kept in Err for logging.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string { return rootCause(e.Err).Error() }

func (e *MutationError) Unwrap() error { return e.Err }

// BookmarkRepository defines the persistence operations needed by the BookmarkService.
type BookmarkRepository interface {
	// ListByOwner returns the user's bookmarks, newest first.
	ListByOwner(ctx context.Context, userID string) ([]models.Bookmark, error)
	// Create inserts a bookmark owned by userID.
	Create(ctx context.Context, userID, title, url string, description *string) error
	// DeleteByOwner removes the bookmark with id if it belongs to userID.
	DeleteByOwner(ctx context.Context, userID, id string) error
}

// BookmarkService implements the bookmark operations of a signed-in user.
type BookmarkService struct {
	repo BookmarkRepository
}

// NewBookmarkService constructs a BookmarkService with the provided repository.
func NewBookmarkService(repo BookmarkRepository) *BookmarkService {
	return &BookmarkService{repo: repo}
}

// List returns the user's bookmarks, newest first. No rows yields an empty slice.
func (s *BookmarkService) List(ctx context.Context, userID string) ([]models.Bookmark, error) {
	if noUser(userID) {
		return nil, ErrNoUser
	}
	list, err := s.repo.ListByOwner(ctx, userID)
	metrics.RecordBookmarkOp("list", err)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Bookmark{}
	}
	return list, nil
}

// Add validates and inserts a bookmark, then returns the refreshed list.
// Validation failures never reach the repository.
func (s *BookmarkService) Add(ctx context.Context, userID string, in models.BookmarkInput) ([]models.Bookmark, error) {
	if noUser(userID) {
		return nil, ErrNoUser
	}
	title, url, description, ok := in.Normalize()
	if !ok {
		return nil, ErrInvalidBookmark
	}

	err := s.repo.Create(ctx, userID, title, url, description)
	metrics.RecordBookmarkOp("add", err)
	if err != nil {
		return nil, &MutationError{Op: "add", Err: err}
	}

	return s.refresh(ctx, userID)
}

// Delete removes the bookmark if it belongs to userID, then returns the
// refreshed list.
func (s *BookmarkService) Delete(ctx context.Context, userID, bookmarkID string) ([]models.Bookmark, error) {
	if noUser(userID) {
		return nil, ErrNoUser
	}
	if bookmarkID == "" {
		return nil, ErrNoBookmark
	}

	err := s.repo.DeleteByOwner(ctx, userID, bookmarkID)
	metrics.RecordBookmarkOp("delete", err)
	if err != nil {
		return nil, &MutationError{Op: "delete", Err: err}
	}

	return s.refresh(ctx, userID)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// noUser reports whether userID cannot scope a query.
func noUser(userID string) bool {
	return strings.TrimSpace(userID) == ""
}

func (s *BookmarkService) refresh(ctx context.Context, userID string) ([]models.Bookmark, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefresh, err)
	}
	return list, nil
}
