package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/SmartBookmarks/internal/metrics"
)

// DefaultStateTTL bounds how long a user may take on the provider's screen.
const DefaultStateTTL = 10 * time.Minute

// Service is the identity capability: it reports the current session,
// starts and completes sign-in, and signs users out.
type Service struct {
	configured bool
	store      SessionStore
	signer     *TokenSigner
	providers  map[string]Provider
	ttl        time.Duration
	stateTTL   time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// NewService creates an identity service. Sessions live for ttl.
func NewService(store SessionStore, signer *TokenSigner, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		configured: true,
		store:      store,
		signer:     signer,
		providers:  map[string]Provider{},
		ttl:        ttl,
		stateTTL:   DefaultStateTTL,
		now:        time.Now,
		log:        log,
	}
}

// NewDisabledService returns a service whose every operation reports
// ErrNotConfigured.
func NewDisabledService() *Service {
	return &Service{log: zap.NewNop()}
}

// Register makes a provider available under name.
func (s *Service) Register(name string, p Provider) {
	s.providers[name] = p
}

// Configured reports whether sign-in is available.
func (s *Service) Configured() bool {
	return s.configured
}

// CurrentSession resolves token to its live session. It returns ErrNoSession
// for an empty, invalid, expired or revoked token.
func (s *Service) CurrentSession(ctx context.Context, token string) (*Session, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if token == "" {
		return nil, ErrNoSession
	}

	sessionID, userID, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != userID || sess.Expired(s.now()) {
		return nil, ErrNoSession
	}
	return sess, nil
}

// SignIn starts a sign-in with provider and returns the URL the user must
// be sent to. redirectTarget is where the user lands afterwards; anything
// but a local path is replaced by DefaultRedirect.
func (s *Service) SignIn(ctx context.Context, provider, redirectTarget string) (string, error) {
	if !s.configured {
		return "", ErrNotConfigured
	}
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	state := uuid.NewString()
	pending := PendingSignIn{Provider: provider, RedirectTo: SafeRedirect(redirectTarget)}
	if err := s.store.SaveState(ctx, state, pending, s.stateTTL); err != nil {
		return "", err
	}

	return p.AuthCodeURL(state), nil
}

// CompleteSignIn consumes the state of a provider callback, identifies the
// user and opens a session.
func (s *Service) CompleteSignIn(ctx context.Context, state, code string) (*SignInResult, error) {
	res, err := s.completeSignIn(ctx, state, code)
	if s.configured {
		metrics.RecordSignIn(err)
	}
	return res, err
}

func (s *Service) completeSignIn(ctx context.Context, state, code string) (*SignInResult, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	if state == "" || code == "" {
		return nil, ErrInvalidState
	}

	pending, err := s.store.TakeState(ctx, state)
	if err != nil {
		return nil, err
	}
	p, ok := s.providers[pending.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, pending.Provider)
	}

	principal, err := p.Identify(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identify with %s: %w", pending.Provider, err)
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    pending.Provider + ":" + principal.Subject,
		Email:     principal.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.SaveSession(ctx, sess, s.ttl); err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(sess)
	if err != nil {
		return nil, err
	}

	s.log.Info("user signed in",
		zap.String("user_id", sess.UserID),
		zap.String("session_id", sess.ID),
	)
	return &SignInResult{Token: token, Session: sess, RedirectTo: pending.RedirectTo}, nil
}

// SignOut revokes the session named by token. An unparsable token has
// nothing to revoke and is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if !s.configured {
		return ErrNotConfigured
	}
	sessionID, _, err := s.signer.Parse(token)
	if err != nil {
		return nil
	}
	return s.store.DeleteSession(ctx, sessionID)
}
