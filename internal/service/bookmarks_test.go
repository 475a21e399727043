package service_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/atinyakov/SmartBookmarks/internal/models"
	"github.com/atinyakov/SmartBookmarks/internal/service"
)

type mockRepo struct {
	ListByOwnerFunc   func(ctx context.Context, userID string) ([]models.Bookmark, error)
	CreateFunc        func(ctx context.Context, userID, title, url string, description *string) error
	DeleteByOwnerFunc func(ctx context.Context, userID, id string) error
}

func (m *mockRepo) ListByOwner(ctx context.Context, userID string) ([]models.Bookmark, error) {
	return m.ListByOwnerFunc(ctx, userID)
}
func (m *mockRepo) Create(ctx context.Context, userID, title, url string, description *string) error {
	return m.CreateFunc(ctx, userID, title, url, description)
}
func (m *mockRepo) DeleteByOwner(ctx context.Context, userID, id string) error {
	return m.DeleteByOwnerFunc(ctx, userID, id)
}

// failingRepo fails the test on any call.
func failingRepo(t *testing.T) *mockRepo {
	return &mockRepo{
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) {
			t.Fatal("unexpected ListByOwner call")
			return nil, nil
		},
		CreateFunc: func(context.Context, string, string, string, *string) error {
			t.Fatal("unexpected Create call")
			return nil
		},
		DeleteByOwnerFunc: func(context.Context, string, string) error {
			t.Fatal("unexpected DeleteByOwner call")
			return nil
		},
	}
}

func TestList_Empty(t *testing.T) {
	repo := &mockRepo{
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) { return nil, nil },
	}
	got, err := service.NewBookmarkService(repo).List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("List = %#v; want empty slice", got)
	}
}

func TestList_NoUser(t *testing.T) {
	_, err := service.NewBookmarkService(failingRepo(t)).List(context.Background(), "")
	if !errors.Is(err, service.ErrNoUser) {
		t.Fatalf("List error = %v; want ErrNoUser", err)
	}
}

func TestAdd_ValidationNeverCallsRepo(t *testing.T) {
	svc := service.NewBookmarkService(failingRepo(t))

	cases := []struct {
		name    string
		userID  string
		input   models.BookmarkInput
		wantErr error
	}{
		{"blank title", "u1", models.BookmarkInput{Title: "   ", URL: "https://x"}, service.ErrInvalidBookmark},
		{"blank url", "u1", models.BookmarkInput{Title: "x", URL: "\t"}, service.ErrInvalidBookmark},
		{"no user", "", models.BookmarkInput{Title: "x", URL: "https://x"}, service.ErrNoUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), tc.userID, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Add error = %v; want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAdd_SuccessRefreshes(t *testing.T) {
	var gotTitle, gotURL string
	var gotDesc *string
	refreshed := []models.Bookmark{{ID: "b1", Title: "Example", URL: "https://example.com"}}

	repo := &mockRepo{
		CreateFunc: func(_ context.Context, userID, title, url string, description *string) error {
			if userID != "u1" {
				t.Errorf("Create userID = %q", userID)
			}
			gotTitle, gotURL, gotDesc = title, url, description
			return nil
		},
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) {
			return refreshed, nil
		},
	}

	got, err := service.NewBookmarkService(repo).Add(context.Background(), "u1",
		models.BookmarkInput{Title: " Example ", URL: "https://example.com ", Description: "  "})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if gotTitle != "Example" || gotURL != "https://example.com" || gotDesc != nil {
		t.Errorf("Create got (%q, %q, %v)", gotTitle, gotURL, gotDesc)
	}
	if !reflect.DeepEqual(got, refreshed) {
		t.Errorf("Add = %+v; want %+v", got, refreshed)
	}
}

func TestAdd_InsertFailure(t *testing.T) {
	repo := &mockRepo{
		CreateFunc: func(context.Context, string, string, string, *string) error {
			return errors.New("permission denied for table bookmarks")
		},
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) {
			t.Fatal("list must not run after a failed insert")
			return nil, nil
		},
	}

	_, err := service.NewBookmarkService(repo).Add(context.Background(), "u1",
		models.BookmarkInput{Title: "a", URL: "b"})
	var mErr *service.MutationError
	if !errors.As(err, &mErr) {
		t.Fatalf("Add error = %v; want MutationError", err)
	}
	if mErr.Op != "add" || mErr.Error() != "permission denied for table bookmarks" {
		t.Errorf("unexpected MutationError: %+v", mErr)
	}
}

func TestMutationError_ShowsDataServiceMessage(t *testing.T) {
	cause := errors.New("pq: permission denied for table bookmarks")
	repo := &mockRepo{
		CreateFunc: func(context.Context, string, string, string, *string) error {
			return fmt.Errorf("Create failed: %w", fmt.Errorf("insert into bookmarks failed: %w", cause))
		},
		DeleteByOwnerFunc: func(context.Context, string, string) error {
			return fmt.Errorf("DeleteByOwner failed: %w", cause)
		},
	}
	svc := service.NewBookmarkService(repo)

	_, addErr := svc.Add(context.Background(), "u1", models.BookmarkInput{Title: "a", URL: "b"})
	_, delErr := svc.Delete(context.Background(), "u1", "b1")

	for _, err := range []error{addErr, delErr} {
		var mErr *service.MutationError
		if !errors.As(err, &mErr) {
			t.Fatalf("error = %v; want MutationError", err)
		}
		if mErr.Error() != cause.Error() {
			t.Errorf("MutationError = %q; want %q", mErr.Error(), cause.Error())
		}
		if !errors.Is(err, cause) {
			t.Errorf("MutationError must keep the wrapped chain")
		}
	}
}

func TestBlankUserIsRejected(t *testing.T) {
	svc := service.NewBookmarkService(failingRepo(t))
	ctx := context.Background()

	if _, err := svc.List(ctx, "  "); !errors.Is(err, service.ErrNoUser) {
		t.Errorf("List error = %v; want ErrNoUser", err)
	}
	if _, err := svc.Add(ctx, "  ", models.BookmarkInput{Title: "a", URL: "b"}); !errors.Is(err, service.ErrNoUser) {
		t.Errorf("Add error = %v; want ErrNoUser", err)
	}
	if _, err := svc.Delete(ctx, "  ", "b1"); !errors.Is(err, service.ErrNoUser) {
		t.Errorf("Delete error = %v; want ErrNoUser", err)
	}
}

func TestAdd_RefreshFailure(t *testing.T) {
	repo := &mockRepo{
		CreateFunc: func(context.Context, string, string, string, *string) error { return nil },
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) {
			return nil, errors.New("timeout")
		},
	}

	_, err := service.NewBookmarkService(repo).Add(context.Background(), "u1",
		models.BookmarkInput{Title: "a", URL: "b"})
	if !errors.Is(err, service.ErrRefresh) {
		t.Fatalf("Add error = %v; want ErrRefresh", err)
	}
	var mErr *service.MutationError
	if errors.As(err, &mErr) {
		t.Errorf("refresh failure must not be reported as a MutationError")
	}
}

func TestDelete_ScopedByOwner(t *testing.T) {
	var gotUser, gotID string
	repo := &mockRepo{
		DeleteByOwnerFunc: func(_ context.Context, userID, id string) error {
			gotUser, gotID = userID, id
			return nil
		},
		ListByOwnerFunc: func(context.Context, string) ([]models.Bookmark, error) {
			return []models.Bookmark{}, nil
		},
	}

	got, err := service.NewBookmarkService(repo).Delete(context.Background(), "u1", "b9")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if gotUser != "u1" || gotID != "b9" {
		t.Errorf("DeleteByOwner(%q, %q)", gotUser, gotID)
	}
	if len(got) != 0 {
		t.Errorf("Delete = %+v; want empty", got)
	}
}

func TestDelete_Errors(t *testing.T) {
	svc := service.NewBookmarkService(failingRepo(t))
	if _, err := svc.Delete(context.Background(), "", "b1"); !errors.Is(err, service.ErrNoUser) {
		t.Errorf("Delete error = %v; want ErrNoUser", err)
	}
	if _, err := svc.Delete(context.Background(), "u1", ""); !errors.Is(err, service.ErrNoBookmark) {
		t.Errorf("Delete error = %v; want ErrNoBookmark", err)
	}

	wantErr := errors.New("row level security")
	repo := &mockRepo{
		DeleteByOwnerFunc: func(context.Context, string, string) error { return wantErr },
	}
	_, err := service.NewBookmarkService(repo).Delete(context.Background(), "u1", "b1")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Delete error = %v; want %v", err, wantErr)
	}
}
