package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
	"github.com/redis/go-redis/v9"
)

// redisStreamInfo is the JSON shape persisted in Redis for one stream.
type redisStreamInfo struct {
	SessionID   string                 `json:"session_id"`
	RequestID   string                 `json:"request_id"`
	Query       string                 `json:"query"`
	Content     string                 `json:"content"`
	Citations   []types.SourceCitation `json:"citations"`
	Confidence  float32                `json:"confidence"`
	LastUpdated time.Time              `json:"last_updated"`
	IsCompleted bool                   `json:"is_completed"`
}

// RedisStreamManager is the Redis-backed StreamManager, used when multiple
// server instances may serve the reconnect request for a given stream.
type RedisStreamManager struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStreamManager creates a Redis-backed stream manager and verifies
// the connection.
func NewRedisStreamManager(redisAddr, redisPassword string,
	redisDB int, prefix string, ttl time.Duration,
) (*RedisStreamManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "stream:"
	}

	return &RedisStreamManager{client: client, ttl: ttl, prefix: prefix}, nil
}

func (r *RedisStreamManager) buildKey(sessionID, requestID string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, sessionID, requestID)
}

// RegisterStream marks the start of a new streamed generation.
func (r *RedisStreamManager) RegisterStream(ctx context.Context, sessionID, requestID, query string) error {
	info := &redisStreamInfo{
		SessionID:   sessionID,
		RequestID:   requestID,
		Query:       query,
		LastUpdated: time.Now(),
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal stream info: %w", err)
	}

	return r.client.Set(ctx, r.buildKey(sessionID, requestID), data, r.ttl).Err()
}

// UpdateStream appends a content delta and, when present, the citation set.
func (r *RedisStreamManager) UpdateStream(ctx context.Context, sessionID, requestID string,
	contentDelta string, citations []types.SourceCitation,
) error {
	key := r.buildKey(sessionID, requestID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("get stream data: %w", err)
	}

	var info redisStreamInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("unmarshal stream data: %w", err)
	}

	info.Content += contentDelta
	if len(citations) > 0 {
		info.Citations = citations
	}
	info.LastUpdated = time.Now()

	updated, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal updated stream info: %w", err)
	}

	return r.client.Set(ctx, key, updated, r.ttl).Err()
}

// CompleteStream marks the stream done and schedules its deletion.
func (r *RedisStreamManager) CompleteStream(ctx context.Context, sessionID, requestID string, confidence float32) error {
	key := r.buildKey(sessionID, requestID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("get stream data: %w", err)
	}

	var info redisStreamInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("unmarshal stream data: %w", err)
	}

	info.IsCompleted = true
	info.Confidence = confidence
	info.LastUpdated = time.Now()

	updated, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal updated stream info: %w", err)
	}

	go func() {
		time.Sleep(30 * time.Second)
		r.client.Del(context.Background(), key)
	}()
	return r.client.Set(ctx, key, updated, r.ttl).Err()
}

// GetStream retrieves the persisted state of one stream, nil if expired or absent.
func (r *RedisStreamManager) GetStream(ctx context.Context, sessionID, requestID string) (*interfaces.StreamInfo, error) {
	key := r.buildKey(sessionID, requestID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get stream data: %w", err)
	}

	var info redisStreamInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal stream data: %w", err)
	}

	return &interfaces.StreamInfo{
		SessionID:   info.SessionID,
		RequestID:   info.RequestID,
		Query:       info.Query,
		Content:     info.Content,
		Citations:   info.Citations,
		Confidence:  info.Confidence,
		LastUpdated: info.LastUpdated,
		IsCompleted: info.IsCompleted,
	}, nil
}

// Close releases the underlying Redis connection.
func (r *RedisStreamManager) Close() error {
	return r.client.Close()
}

var _ interfaces.StreamManager = (*RedisStreamManager)(nil)
