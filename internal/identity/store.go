package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefixSession is the prefix for session keys
	KeyPrefixSession = "sb:session:"
	// KeyPrefixState is the prefix for pending sign-in keys
	KeyPrefixState = "sb:oauth_state:"
)

// SessionKey returns the Redis key for a session
func SessionKey(id string) string {
	return KeyPrefixSession + id
}

// StateKey returns the Redis key for a pending sign-in
func StateKey(state string) string {
	return KeyPrefixState + state
}

// SessionStore persists sessions and pending sign-ins.
type SessionStore interface {
	SaveSession(ctx context.Context, s *Session, ttl time.Duration) error
	// GetSession returns ErrNoSession when no record exists.
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	SaveState(ctx context.Context, state string, p PendingSignIn, ttl time.Duration) error
	// TakeState returns and removes the pending sign-in, or ErrInvalidState.
	TakeState(ctx context.Context, state string) (*PendingSignIn, error)
}

// RedisStore keeps sessions and pending sign-ins in Redis as JSON values
// that expire on their own.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store on top of client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveSession(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, SessionKey(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, SessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveState(ctx context.Context, state string, p PendingSignIn, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal sign-in state: %w", err)
	}
	if err := s.client.Set(ctx, StateKey(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save sign-in state: %w", err)
	}
	return nil
}

func (s *RedisStore) TakeState(ctx context.Context, state string) (*PendingSignIn, error) {
	// GETDEL makes a state usable exactly once.
	data, err := s.client.GetDel(ctx, StateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to take sign-in state: %w", err)
	}

	var p PendingSignIn
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sign-in state: %w", err)
	}
	return &p, nil
}
