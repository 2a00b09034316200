package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
)

// lockEntry is a held name with the token of its owner
type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryNameLock implements provisioning.NameLock for a single process.
// Expired entries are reclaimed lazily on the next Acquire of the same name.
type InMemoryNameLock struct {
	mu      sync.Mutex
	entries map[string]lockEntry
	now     func() time.Time
}

// NewInMemoryNameLock creates an empty in-process lock table
func NewInMemoryNameLock() *InMemoryNameLock {
	return &InMemoryNameLock{
		entries: make(map[string]lockEntry),
		now:     time.Now,
	}
}

// Acquire takes the lock for name. A ttl of zero or less holds it until released.
func (l *InMemoryNameLock) Acquire(ctx context.Context, name string, ttl time.Duration) (provisioning.ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.entries[name]; held {
		if e.expiresAt.IsZero() || now.Before(e.expiresAt) {
			return nil, provisioning.ErrProvisioningInProgress
		}
	}

	e := lockEntry{token: uuid.NewString()}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	l.entries[name] = e

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { l.release(name, e.token) })
		return nil
	}, nil
}

// release drops the entry only if it still belongs to token
func (l *InMemoryNameLock) release(name, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[name]; ok && e.token == token {
		delete(l.entries, name)
	}
}

// Held reports whether name is currently locked
func (l *InMemoryNameLock) Held(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[name]
	if !ok {
		return false
	}
	return e.expiresAt.IsZero() || l.now().Before(e.expiresAt)
}

var _ provisioning.NameLock = (*InMemoryNameLock)(nil)
