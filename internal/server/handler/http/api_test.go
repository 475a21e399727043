package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/dataservice"
	"github.com/atinyakov/SmartBookmarks/internal/models"
	"github.com/atinyakov/SmartBookmarks/internal/service"
)

// fakeBookmarks implements BookmarkService for testing.
type fakeBookmarks struct {
	list []models.Bookmark
	err  error

	gotUser  string
	gotInput models.BookmarkInput
	gotID    string
	calls    int
}

func (f *fakeBookmarks) List(_ context.Context, userID string) ([]models.Bookmark, error) {
	f.calls++
	f.gotUser = userID
	return f.list, f.err
}

func (f *fakeBookmarks) Add(_ context.Context, userID string, in models.BookmarkInput) ([]models.Bookmark, error) {
	f.calls++
	f.gotUser = userID
	f.gotInput = in
	return f.list, f.err
}

func (f *fakeBookmarks) Delete(_ context.Context, userID, id string) ([]models.Bookmark, error) {
	f.calls++
	f.gotUser = userID
	f.gotID = id
	return f.list, f.err
}

// fakeLocker implements Locker for testing.
type fakeLocker struct {
	held     map[string]bool
	err      error
	released []string
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestAPIHandler_List(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		svc          *fakeBookmarks
		expectedCode int
		wantCount    int
		wantErr      string
	}{
		{
			name:         "ok",
			svc:          &fakeBookmarks{list: []models.Bookmark{{ID: "b1", Title: "Go", URL: "https://go.dev", CreatedAt: now}}},
			expectedCode: http.StatusOK,
			wantCount:    1,
		},
		{
			name:         "empty",
			svc:          &fakeBookmarks{list: []models.Bookmark{}},
			expectedCode: http.StatusOK,
		},
		{
			name:         "data service not configured",
			svc:          &fakeBookmarks{err: dataservice.ErrNotConfigured},
			expectedCode: http.StatusServiceUnavailable,
			wantErr:      dataservice.ErrNotConfigured.Error(),
		},
		{
			name:         "fetch failure",
			svc:          &fakeBookmarks{err: errors.New("connection refused")},
			expectedCode: http.StatusBadGateway,
			wantErr:      "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &APIHandler{Bookmarks: tt.svc, Log: zap.NewNop()}
			rec := httptest.NewRecorder()
			h.List(rec, withOutcome(httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil), signedIn))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantErr != "" {
				var resp errorResponse
				decodeBody(t, rec, &resp)
				assert.Equal(t, tt.wantErr, resp.Error)
				return
			}
			var resp listResponse
			decodeBody(t, rec, &resp)
			assert.Len(t, resp.Bookmarks, tt.wantCount)
			assert.Equal(t, "google:42", tt.svc.gotUser)
		})
	}
}

func TestAPIHandler_Add(t *testing.T) {
	created := []models.Bookmark{{ID: "b1", Title: "Go", URL: "https://go.dev"}}
	tests := []struct {
		name         string
		body         string
		svc          *fakeBookmarks
		locker       *fakeLocker
		expectedCode int
		wantErr      string
		wantStale    bool
	}{
		{
			name:         "invalid JSON",
			body:         `not a json`,
			svc:          &fakeBookmarks{},
			expectedCode: http.StatusBadRequest,
			wantErr:      "invalid request",
		},
		{
			name:         "created",
			body:         `{"title":"Go","url":"https://go.dev"}`,
			svc:          &fakeBookmarks{list: created},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "blank title",
			body:         `{"title":"  ","url":"https://go.dev"}`,
			svc:          &fakeBookmarks{err: service.ErrInvalidBookmark},
			expectedCode: http.StatusBadRequest,
			wantErr:      service.ErrInvalidBookmark.Error(),
		},
		{
			name:         "insert rejected",
			body:         `{"title":"Go","url":"https://go.dev"}`,
			svc:          &fakeBookmarks{err: &service.MutationError{Op: "add", Err: errors.New("permission denied")}},
			expectedCode: http.StatusBadGateway,
			wantErr:      "Failed to add: permission denied",
		},
		{
			name:         "refresh failed",
			body:         `{"title":"Go","url":"https://go.dev"}`,
			svc:          &fakeBookmarks{err: fmt.Errorf("%w: %w", service.ErrRefresh, errors.New("timeout"))},
			expectedCode: http.StatusCreated,
			wantStale:    true,
		},
		{
			name:         "already in flight",
			body:         `{"title":"Go","url":"https://go.dev"}`,
			svc:          &fakeBookmarks{},
			locker:       &fakeLocker{held: map[string]bool{"api:add:sid-1": true}},
			expectedCode: http.StatusConflict,
			wantErr:      "request already in progress",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &APIHandler{Bookmarks: tt.svc, Log: zap.NewNop()}
			if tt.locker != nil {
				h.Inflight = tt.locker
			}
			req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.Add(rec, withOutcome(req, signedIn))

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.wantErr != "" {
				var resp errorResponse
				decodeBody(t, rec, &resp)
				assert.Equal(t, tt.wantErr, resp.Error)
				return
			}
			var resp mutationResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.wantStale, resp.Stale)
			assert.Equal(t, models.BookmarkInput{Title: "Go", URL: "https://go.dev"}, tt.svc.gotInput)
		})
	}
}

func TestAPIHandler_Delete(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		svc := &fakeBookmarks{}
		h := &APIHandler{Bookmarks: svc, Log: zap.NewNop()}
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookmarks/b1", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Delete(rec, withOutcome(req, signedIn))

		assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
		assert.Zero(t, svc.calls)
	})

	t.Run("deletes and releases marker", func(t *testing.T) {
		svc := &fakeBookmarks{list: []models.Bookmark{}}
		locker := &fakeLocker{}
		h := &APIHandler{Bookmarks: svc, Inflight: locker, Log: zap.NewNop()}
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookmarks/b1?confirm=true", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Delete(rec, withOutcome(req, signedIn))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "b1", svc.gotID)
		assert.Equal(t, "google:42", svc.gotUser)
		assert.Equal(t, []string{"api:delete:sid-1:b1"}, locker.released)
	})

	t.Run("missing id", func(t *testing.T) {
		svc := &fakeBookmarks{err: service.ErrNoBookmark}
		h := &APIHandler{Bookmarks: svc, Log: zap.NewNop()}
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookmarks/x?confirm=true", nil), "id", "")
		rec := httptest.NewRecorder()
		h.Delete(rec, withOutcome(req, signedIn))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete rejected", func(t *testing.T) {
		svc := &fakeBookmarks{err: &service.MutationError{Op: "delete", Err: errors.New("row locked")}}
		h := &APIHandler{Bookmarks: svc, Log: zap.NewNop()}
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookmarks/b1?confirm=true", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Delete(rec, withOutcome(req, signedIn))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		var resp errorResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Failed to delete: row locked", resp.Error)
	})

	t.Run("locker failure", func(t *testing.T) {
		svc := &fakeBookmarks{}
		h := &APIHandler{Bookmarks: svc, Inflight: &fakeLocker{err: errors.New("redis down")}, Log: zap.NewNop()}
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookmarks/b1?confirm=true", nil), "id", "b1")
		rec := httptest.NewRecorder()
		h.Delete(rec, withOutcome(req, signedIn))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Zero(t, svc.calls)
	})
}
