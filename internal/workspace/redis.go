package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefixWorkspace is the prefix for workspace state keys
	KeyPrefixWorkspace = "sb:workspace:"
	// KeyPrefixInFlight is the prefix for in-flight markers
	KeyPrefixInFlight = "sb:inflight:"
)

// WorkspaceKey returns the Redis key for a session's workspace
func WorkspaceKey(sessionID string) string {
	return KeyPrefixWorkspace + sessionID
}

// InFlightKey returns the Redis key for an in-flight marker
func InFlightKey(key string) string {
	return KeyPrefixInFlight + key
}

// RedisStore keeps workspaces in Redis. States expire after idle without
// a save, so no sweeper is needed.
type RedisStore struct {
	client redis.UniversalClient
	idle   time.Duration
}

// NewRedisStore creates a store whose states live for idle after each save.
func NewRedisStore(client redis.UniversalClient, idle time.Duration) *RedisStore {
	return &RedisStore{client: client, idle: idle}
}

// maxUpdateRetries bounds optimistic retries when another request of the
// same session writes the workspace between WATCH and EXEC.
const maxUpdateRetries = 10

// ErrConflict is returned when Update keeps losing to concurrent writers.
var ErrConflict = errors.New("workspace changed concurrently")

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	return s.load(ctx, s.client, WorkspaceKey(sessionID))
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, key string) (*State, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace: %w", err)
	}
	return &st, nil
}

// Update runs fn inside a WATCH/MULTI transaction on the workspace key and
// retries when a concurrent writer got there first.
func (s *RedisStore) Update(ctx context.Context, sessionID string, fn func(*State)) (*State, error) {
	key := WorkspaceKey(sessionID)

	var out *State
	txf := func(tx *redis.Tx) error {
		st, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		fn(st)

		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal workspace: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.idle)
			return nil
		})
		if err != nil {
			return err
		}
		out = st
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to save workspace: %w", err)
	}
	return nil, ErrConflict
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, WorkspaceKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, InFlightKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire in-flight marker: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, InFlightKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight marker: %w", err)
	}
	return nil
}
