package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/policyqa/core/internal/types"
)

// redisStore is the Redis-backed Store, built the same way
// internal/stream.RedisStreamManager wraps go-redis: a prefixed key space,
// JSON-encoded values, and TTL passed straight to SET. The semantic
// candidate set is a separate sorted set (score = creation unix time) so
// ScanRecent and PruneSemanticCandidates are O(log N) Redis operations
// instead of a full key scan.
type redisStore struct {
	client       *redis.Client
	prefix       string
	semanticZKey string
}

// newRedisStore creates a Redis-backed Store and verifies the connection.
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
		prefix = "cache:"
	}
	return &redisStore{client: client, prefix: prefix, semanticZKey: prefix + "semantic:index"}, nil
}

func (s *redisStore) buildKey(key string) string {
	return s.prefix + key
}

func (s *redisStore) Get(ctx context.Context, key string) (types.CacheEntry, bool, error) {
	data, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.CacheEntry{}, false, nil
		}
		return types.CacheEntry{}, false, fmt.Errorf("redis get: %w", err)
	}
	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return types.CacheEntry{}, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return entry, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, entry types.CacheEntry, ttl time.Duration, semantic bool) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	fullKey := s.buildKey(key)
	if err := s.client.Set(ctx, fullKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if semantic {
		if err := s.client.ZAdd(ctx, s.semanticZKey, redis.Z{
			Score:  float64(entry.CreatedAt.Unix()),
			Member: fullKey,
		}).Err(); err != nil {
			return fmt.Errorf("redis zadd semantic index: %w", err)
		}
	}
	return nil
}

func (s *redisStore) ScanRecent(ctx context.Context, limit int) ([]types.CacheEntry, error) {
	keys, err := s.client.ZRevRange(ctx, s.semanticZKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	entries := make([]types.CacheEntry, 0, len(values))
	staleKeys := make([]string, 0)
	for i, v := range values {
		if v == nil {
			staleKeys = append(staleKeys, keys[i])
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var entry types.CacheEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if len(staleKeys) > 0 {
		s.client.ZRem(ctx, s.semanticZKey, toAnySlice(staleKeys)...)
	}
	return entries, nil
}

func (s *redisStore) PruneSemanticCandidates(ctx context.Context, keep int) error {
	count, err := s.client.ZCard(ctx, s.semanticZKey).Result()
	if err != nil {
		return fmt.Errorf("redis zcard: %w", err)
	}
	if count <= int64(keep) {
		return nil
	}
	// ZRemRangeByRank drops the lowest-scored (oldest) entries, keeping the
	// `keep` most recent.
	if err := s.client.ZRemRangeByRank(ctx, s.semanticZKey, 0, count-int64(keep)-1).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyrank: %w", err)
	}
	return nil
}

func toAnySlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
