package cache

import (
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewNameLock picks the distributed lock when a Redis client is available
// and falls back to the in-process lock otherwise
func NewNameLock(client *redis.Client, logger *zap.Logger) provisioning.NameLock {
	if client != nil {
		logger.Info("using Redis provisioning name lock")
		return NewRedisNameLock(client, DefaultLockKeyPrefix)
	}

	logger.Warn("Redis unavailable, using in-memory provisioning name lock. " +
		"Concurrent runs on other instances are not serialised.")
	return NewInMemoryNameLock()
}
