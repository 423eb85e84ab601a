package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore is the Redis-backed Store, built the same way
// internal/cache.redisStore wraps go-redis: a prefixed key space with
// JSON-encoded values and TTL passed straight to SET.
type redisStore struct {
	client *redis.Client
	prefix string
}

func newRedisStore(addr, password string, db int, prefix string) (*redisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if prefix == "" {
		prefix = "conversation:"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) buildKey(sessionID string) string {
	return s.prefix + sessionID
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (sessionState, bool, error) {
	data, err := s.client.Get(ctx, s.buildKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return sessionState{}, false, nil
		}
		return sessionState{}, false, fmt.Errorf("redis get: %w", err)
	}
	var state sessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return sessionState{}, false, fmt.Errorf("unmarshal session state: %w", err)
	}
	return state, true, nil
}

func (s *redisStore) Save(ctx context.Context, sessionID string, state sessionState, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, s.buildKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.buildKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
