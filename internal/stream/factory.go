package stream

import (
	"time"

	"github.com/policyqa/core/internal/config"
	"github.com/policyqa/core/internal/types/interfaces"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// NewStreamManager builds the configured StreamManager implementation.
func NewStreamManager(redisCfg config.RedisConfig, kind string) (interfaces.StreamManager, error) {
	if kind != TypeRedis {
		return NewMemoryStreamManager(), nil
	}

	ttl := time.Hour
	return NewRedisStreamManager(
		redisCfg.Address,
		redisCfg.Password,
		redisCfg.DB,
		redisCfg.Prefix,
		ttl,
	)
}
