package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/dataservice"
	"github.com/atinyakov/SmartBookmarks/internal/middleware"
	"github.com/atinyakov/SmartBookmarks/internal/models"
	"github.com/atinyakov/SmartBookmarks/internal/service"
)

// BookmarkService defines the bookmark operations required by the APIHandler.
type BookmarkService interface {
	// List returns the user's bookmarks, newest first.
	List(ctx context.Context, userID string) ([]models.Bookmark, error)
	// Add stores a bookmark and returns the refreshed list.
	Add(ctx context.Context, userID string, in models.BookmarkInput) ([]models.Bookmark, error)
	// Delete removes a bookmark owned by userID and returns the refreshed list.
	Delete(ctx context.Context, userID, bookmarkID string) ([]models.Bookmark, error)
}

// Locker marks a mutation as in flight.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// APIHandler serves the JSON bookmark API.
type APIHandler struct {
	Bookmarks BookmarkService
	// Inflight rejects a second concurrent mutation on the same target.
	// Nil disables the check.
	Inflight Locker
	Log      *zap.Logger
}

type listResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
}

type mutationResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
	// Stale is set when the mutation succeeded but the list could not be refreshed.
	Stale bool `json:"stale,omitempty"`
}

const inflightTTL = 30 * time.Second

// List handles GET /api/bookmarks.
func (h *APIHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	list, err := h.Bookmarks.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Bookmarks: list})
}

// Add handles POST /api/bookmarks with a JSON models.BookmarkInput body.
func (h *APIHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	var in models.BookmarkInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	release, ok := h.acquire(ctx, w, "api:add:"+middleware.GetSessionIDFromContext(ctx))
	if !ok {
		return
	}
	defer release()

	list, err := h.Bookmarks.Add(ctx, userID, in)
	if err != nil && !errors.Is(err, service.ErrRefresh) {
		h.writeServiceError(w, "add", err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{Bookmarks: list, Stale: err != nil})
}

// Delete handles DELETE /api/bookmarks/{id}. The request must carry
// confirm=true; without it nothing is called and 428 is returned.
func (h *APIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, "confirmation required")
		return
	}

	release, ok := h.acquire(ctx, w, "api:delete:"+middleware.GetSessionIDFromContext(ctx)+":"+id)
	if !ok {
		return
	}
	defer release()

	list, err := h.Bookmarks.Delete(ctx, userID, id)
	if err != nil && !errors.Is(err, service.ErrRefresh) {
		h.writeServiceError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Bookmarks: list, Stale: err != nil})
}

func (h *APIHandler) acquire(ctx context.Context, w http.ResponseWriter, key string) (func(), bool) {
	if h.Inflight == nil {
		return func() {}, true
	}
	ok, err := h.Inflight.Acquire(ctx, key, inflightTTL)
	if err != nil {
		h.Log.Error("failed to acquire in-flight marker", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !ok {
		writeError(w, http.StatusConflict, "request already in progress")
		return nil, false
	}
	return func() {
		if err := h.Inflight.Release(context.WithoutCancel(ctx), key); err != nil {
			h.Log.Warn("failed to release in-flight marker", zap.Error(err))
		}
	}, true
}

func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var mErr *service.MutationError
	switch {
	case errors.Is(err, service.ErrInvalidBookmark), errors.Is(err, service.ErrNoBookmark):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoUser):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, dataservice.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &mErr):
		writeError(w, http.StatusBadGateway, "Failed to "+op+": "+mErr.Error())
	default:
		h.Log.Error("bookmark operation failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
