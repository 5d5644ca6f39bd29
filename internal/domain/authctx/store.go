package authctx

import (
	"context"
	"sync"
	"time"

	"github.com/kidpech/authbridge/internal/domain/authbridge"
)

// Store persists published sessions until they expire.
type Store interface {
	Put(ctx context.Context, key string, sess *authbridge.Session, ttl time.Duration) error
	Get(ctx context.Context, key string) (*authbridge.Session, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	session   authbridge.Session
	expiresAt time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, key string, sess *authbridge.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{session: *sess, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (*authbridge.Session, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	if !m.now().Before(entry.expiresAt) {
		_ = m.Delete(ctx, key)
		return nil, ErrNoSession
	}
	sess := entry.session
	return &sess, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Ping lets health checks treat the memory store like remote backends.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
