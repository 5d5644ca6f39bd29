package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
	"github.com/kidpech/authbridge/internal/domain/authctx"
)

// SessionStore implements authctx.Store on redis.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore builds the store; keys are "{prefix}:{key}".
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Put implements authctx.Store.
func (s *SessionStore) Put(ctx context.Context, key string, sess *authbridge.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(key), raw, ttl).Err()
}

// Get implements authctx.Store.
func (s *SessionStore) Get(ctx context.Context, key string) (*authbridge.Session, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authctx.ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var sess authbridge.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Delete implements authctx.Store.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Ping implements the health check probe.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SessionStore) key(k string) string {
	return s.prefix + ":" + k
}
