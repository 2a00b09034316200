package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKeyPrefix namespaces provisioning name locks in Redis
const DefaultLockKeyPrefix = "bau:provisioning:lock:"

// fallbackLockTTL bounds a lock whose caller asked for no expiry, so a
// crashed instance cannot hold a name forever
const fallbackLockTTL = time.Hour

// releaseScript deletes the key only when it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisNameLock implements provisioning.NameLock across instances using SETNX
type RedisNameLock struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisNameLock creates a lock backed by an existing client
func NewRedisNameLock(client redis.UniversalClient, keyPrefix string) *RedisNameLock {
	if keyPrefix == "" {
		keyPrefix = DefaultLockKeyPrefix
	}
	return &RedisNameLock{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire sets the lock key if absent. The returned release is idempotent
// and never removes a lock that expired and was taken by another run.
func (l *RedisNameLock) Acquire(ctx context.Context, name string, ttl time.Duration) (provisioning.ReleaseFunc, error) {
	if ttl <= 0 {
		ttl = fallbackLockTTL
	}

	key := l.keyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire provisioning lock: %w", err)
	}
	if !ok {
		return nil, provisioning.ErrProvisioningInProgress
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release provisioning lock: %w", err)
		}
		return nil
	}, nil
}

var _ provisioning.NameLock = (*RedisNameLock)(nil)
