package workspace

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/dataservice"
	"github.com/atinyakov/SmartBookmarks/internal/models"
	"github.com/atinyakov/SmartBookmarks/internal/service"
)

// DefaultLockTTL bounds how long an abandoned in-flight marker blocks retries.
const DefaultLockTTL = 30 * time.Second

// Bookmarks is the bookmark adapter the controller drives.
type Bookmarks interface {
	List(ctx context.Context, userID string) ([]models.Bookmark, error)
	Add(ctx context.Context, userID string, in models.BookmarkInput) ([]models.Bookmark, error)
	Delete(ctx context.Context, userID, bookmarkID string) ([]models.Bookmark, error)
}

// Controller applies user actions to a session's workspace. Each action runs
// Idle -> Submitting -> Success|Failed -> Idle; a failure leaves the list as
// it was and, for mutations, queues a notice.
type Controller struct {
	bookmarks Bookmarks
	store     Store
	lockTTL   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewController creates a Controller.
func NewController(bookmarks Bookmarks, store Store, log *zap.Logger) *Controller {
	return &Controller{
		bookmarks: bookmarks,
		store:     store,
		lockTTL:   DefaultLockTTL,
		now:       time.Now,
		log:       log,
	}
}

func (c *Controller) load(ctx context.Context, sessionID string) (*State, error) {
	if sessionID == "" {
		return nil, ErrNoWorkspace
	}
	return c.store.Load(ctx, sessionID)
}

// update applies fn to the freshest stored state. Actions only set the
// fields they own, so a concurrent action's notice or form survives.
func (c *Controller) update(ctx context.Context, sessionID string, fn func(*State)) (*State, error) {
	if sessionID == "" {
		return nil, ErrNoWorkspace
	}
	now := c.now()
	return c.store.Update(ctx, sessionID, func(st *State) {
		fn(st)
		st.UpdatedAt = now
	})
}

// Open refreshes the list for the screen. A failed fetch keeps the previous
// list and is only logged.
func (c *Controller) Open(ctx context.Context, sessionID, userID string) (*State, error) {
	if sessionID == "" {
		return nil, ErrNoWorkspace
	}

	list, err := c.bookmarks.List(ctx, userID)
	var apply func(*State)
	switch {
	case err == nil:
		apply = func(st *State) {
			st.Bookmarks = list
			st.Unconfigured = false
		}
	case errors.Is(err, dataservice.ErrNotConfigured):
		apply = func(st *State) { st.Unconfigured = true }
	default:
		c.log.Error("failed to fetch bookmarks", zap.String("user_id", userID), zap.Error(err))
		apply = func(*State) {}
	}

	return c.update(ctx, sessionID, apply)
}

// Add submits the form. Blank title or url is a silent no-op that keeps
// the form. On failure the form and list stay as they were.
func (c *Controller) Add(ctx context.Context, sessionID, userID string, form Form) (*State, error) {
	if sessionID == "" {
		return nil, ErrNoWorkspace
	}
	if form.Blank() {
		return c.update(ctx, sessionID, func(st *State) { st.Form = form })
	}

	release, err := c.acquire(ctx, "add:"+sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	list, err := c.bookmarks.Add(ctx, userID, form.Input())
	var mErr *service.MutationError
	var apply func(*State)
	switch {
	case err == nil:
		apply = func(st *State) {
			st.Bookmarks = list
			st.Form = Form{}
		}
	case errors.Is(err, dataservice.ErrNotConfigured):
		apply = func(st *State) {
			st.Form = form
			st.Unconfigured = true
		}
	case errors.Is(err, service.ErrRefresh):
		c.log.Error("failed to refresh bookmarks after add", zap.String("user_id", userID), zap.Error(err))
		apply = func(st *State) { st.Form = Form{} }
	case errors.As(err, &mErr):
		c.log.Warn("failed to add bookmark", zap.String("user_id", userID), zap.NamedError("cause", mErr.Err))
		apply = func(st *State) {
			st.Form = form
			st.Notice = "Failed to add: " + mErr.Error()
		}
	default:
		apply = func(st *State) {
			st.Form = form
			st.Notice = "Failed to add: " + err.Error()
		}
	}

	return c.update(ctx, sessionID, apply)
}

// Delete removes a bookmark once the user confirmed. A declined
// confirmation changes nothing and calls nothing.
func (c *Controller) Delete(ctx context.Context, sessionID, userID, bookmarkID string, confirmed bool) (*State, error) {
	if !confirmed {
		return c.load(ctx, sessionID)
	}
	if sessionID == "" {
		return nil, ErrNoWorkspace
	}

	release, err := c.acquire(ctx, "delete:"+sessionID+":"+bookmarkID)
	if err != nil {
		return nil, err
	}
	defer release()

	list, err := c.bookmarks.Delete(ctx, userID, bookmarkID)
	var mErr *service.MutationError
	var apply func(*State)
	switch {
	case err == nil:
		apply = func(st *State) { st.Bookmarks = list }
	case errors.Is(err, dataservice.ErrNotConfigured):
		apply = func(st *State) { st.Unconfigured = true }
	case errors.Is(err, service.ErrRefresh):
		c.log.Error("failed to refresh bookmarks after delete", zap.String("user_id", userID), zap.Error(err))
		apply = func(*State) {}
	case errors.As(err, &mErr):
		c.log.Warn("failed to delete bookmark", zap.String("user_id", userID), zap.NamedError("cause", mErr.Err))
		apply = func(st *State) { st.Notice = "Failed to delete: " + mErr.Error() }
	default:
		apply = func(st *State) { st.Notice = "Failed to delete: " + err.Error() }
	}

	return c.update(ctx, sessionID, apply)
}

// Current returns the stored state without contacting the data service.
func (c *Controller) Current(ctx context.Context, sessionID string) (*State, error) {
	return c.load(ctx, sessionID)
}

// TakeNotice returns the pending notice and clears it.
func (c *Controller) TakeNotice(ctx context.Context, sessionID string) (string, error) {
	st, err := c.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if st.Notice == "" {
		return "", nil
	}

	var notice string
	_, err = c.update(ctx, sessionID, func(st *State) {
		notice = st.Notice
		st.Notice = ""
	})
	if err != nil {
		return "", err
	}
	return notice, nil
}

// Close drops the session's workspace.
func (c *Controller) Close(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return c.store.Delete(ctx, sessionID)
}

func (c *Controller) acquire(ctx context.Context, key string) (func(), error) {
	ok, err := c.store.Acquire(ctx, key, c.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		// The request context may already be done.
		if err := c.store.Release(context.WithoutCancel(ctx), key); err != nil {
			c.log.Warn("failed to release in-flight marker", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
