// Package http provides the HTTP screens, JSON API and routing of the
// Smart Bookmarks service.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/identity"
	"github.com/atinyakov/SmartBookmarks/internal/middleware"
	"github.com/atinyakov/SmartBookmarks/internal/models"
	"github.com/atinyakov/SmartBookmarks/internal/workspace"
)

// IdentityService defines the identity operations required by the PageHandler.
type IdentityService interface {
	// Configured reports whether sign-in is available at all.
	Configured() bool
	// SignIn returns the provider URL that starts a sign-in.
	SignIn(ctx context.Context, provider, redirectTarget string) (string, error)
	// CompleteSignIn finishes the provider callback and opens a session.
	CompleteSignIn(ctx context.Context, state, code string) (*identity.SignInResult, error)
	// SignOut revokes the session named by token.
	SignOut(ctx context.Context, token string) error
}

// Workspace defines the screen state operations required by the PageHandler.
type Workspace interface {
	Open(ctx context.Context, sessionID, userID string) (*workspace.State, error)
	Current(ctx context.Context, sessionID string) (*workspace.State, error)
	Add(ctx context.Context, sessionID, userID string, form workspace.Form) (*workspace.State, error)
	Delete(ctx context.Context, sessionID, userID, bookmarkID string, confirmed bool) (*workspace.State, error)
	TakeNotice(ctx context.Context, sessionID string) (string, error)
	Close(ctx context.Context, sessionID string) error
}

// PageHandler serves the login and bookmark screens.
type PageHandler struct {
	Identity  IdentityService
	Workspace Workspace
	Log       *zap.Logger
	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
}

type loginView struct {
	Configured bool
	Next       string
	Notice     string
}

type homepageView struct {
	Bookmarks    []models.Bookmark
	Form         workspace.Form
	Notice       string
	Unconfigured bool
}

type confirmView struct {
	ID    string
	Title string
}

func (h *PageHandler) render(w http.ResponseWriter, status int, name string, data any) {
	if err := renderPage(w, status, name, data); err != nil {
		h.Log.Error("failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *PageHandler) renderLogin(w http.ResponseWriter, status int, notice string) {
	h.render(w, status, "login", loginView{
		Configured: h.Identity.Configured(),
		Next:       identity.DefaultRedirect,
		Notice:     notice,
	})
}

// LoginPage handles GET /login.
func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "login", loginView{
		Configured: h.Identity.Configured(),
		Next:       identity.SafeRedirect(r.URL.Query().Get("next")),
	})
}

// Login handles POST /login. It redirects the browser to the provider.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := r.FormValue("provider")
	if provider == "" {
		provider = identity.ProviderGoogle
	}

	authURL, err := h.Identity.SignIn(r.Context(), provider, r.FormValue("next"))
	switch {
	case err == nil:
		http.Redirect(w, r, authURL, http.StatusSeeOther)
	case errors.Is(err, identity.ErrNotConfigured):
		h.renderLogin(w, http.StatusServiceUnavailable, "Sign-in is not configured")
	case errors.Is(err, identity.ErrUnknownProvider):
		h.renderLogin(w, http.StatusBadRequest, "Unknown sign-in provider")
	default:
		h.Log.Error("failed to start sign-in", zap.Error(err))
		h.renderLogin(w, http.StatusInternalServerError, "Sign-in failed, please try again")
	}
}

// Callback handles GET /auth/callback from the identity provider.
func (h *PageHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") != "" {
		h.renderLogin(w, http.StatusUnauthorized, "Sign-in was cancelled")
		return
	}

	res, err := h.Identity.CompleteSignIn(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			h.renderLogin(w, http.StatusServiceUnavailable, "Sign-in is not configured")
			return
		}
		h.Log.Warn("sign-in failed", zap.Error(err))
		h.renderLogin(w, http.StatusUnauthorized, "Sign-in failed, please try again")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, res.RedirectTo, http.StatusSeeOther)
}

// Homepage handles GET /homepage.
func (h *PageHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	out := middleware.OutcomeFromContext(r.Context())
	if out.Status != middleware.Authenticated {
		h.render(w, http.StatusOK, "homepage", homepageView{Unconfigured: true})
		return
	}

	ctx := r.Context()
	notice, err := h.Workspace.TakeNotice(ctx, out.SessionID)
	if err != nil {
		h.Log.Error("failed to read notice", zap.Error(err))
	}
	st, err := h.Workspace.Open(ctx, out.SessionID, out.UserID)
	if err != nil {
		h.Log.Error("failed to open workspace", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "homepage", homepageView{
		Bookmarks:    st.Bookmarks,
		Form:         st.Form,
		Notice:       notice,
		Unconfigured: st.Unconfigured,
	})
}

// AddBookmark handles POST /homepage/bookmarks.
func (h *PageHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	out := middleware.OutcomeFromContext(r.Context())
	if out.Status == middleware.Authenticated {
		form := workspace.Form{
			Title:       r.FormValue("title"),
			URL:         r.FormValue("url"),
			Description: r.FormValue("description"),
		}
		if _, err := h.Workspace.Add(r.Context(), out.SessionID, out.UserID, form); err != nil && !errors.Is(err, workspace.ErrBusy) {
			h.Log.Error("failed to add bookmark", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, "/homepage", http.StatusSeeOther)
}

// ConfirmDelete handles GET /homepage/bookmarks/{id}/delete.
func (h *PageHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	out := middleware.OutcomeFromContext(r.Context())
	if out.Status != middleware.Authenticated {
		http.Redirect(w, r, "/homepage", http.StatusSeeOther)
		return
	}

	id := chi.URLParam(r, "id")
	view := confirmView{ID: id}
	if st, err := h.Workspace.Current(r.Context(), out.SessionID); err == nil {
		for _, b := range st.Bookmarks {
			if b.ID == id {
				view.Title = b.Title
				break
			}
		}
	}
	h.render(w, http.StatusOK, "confirm", view)
}

// DeleteBookmark handles POST /homepage/bookmarks/{id}/delete. Only
// confirm=yes deletes; anything else is a declined confirmation.
func (h *PageHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	out := middleware.OutcomeFromContext(r.Context())
	if out.Status == middleware.Authenticated {
		confirmed := r.FormValue("confirm") == "yes"
		_, err := h.Workspace.Delete(r.Context(), out.SessionID, out.UserID, chi.URLParam(r, "id"), confirmed)
		if err != nil && !errors.Is(err, workspace.ErrBusy) {
			h.Log.Error("failed to delete bookmark", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, "/homepage", http.StatusSeeOther)
}

// Logout handles POST /logout. Sign-out is best effort: the cookie and
// workspace are dropped even when revoking the session fails.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Identity.SignOut(ctx, middleware.TokenFromRequest(r)); err != nil && !errors.Is(err, identity.ErrNotConfigured) {
		h.Log.Warn("failed to sign out", zap.Error(err))
	}
	if err := h.Workspace.Close(ctx, middleware.GetSessionIDFromContext(ctx)); err != nil {
		h.Log.Warn("failed to close workspace", zap.Error(err))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
