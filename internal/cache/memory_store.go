package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/policyqa/core/internal/types"
)

// memoryStore is an in-process Store, used in tests and as the degrade
// target when Redis is unreachable at startup. It mirrors the public
// behavior of redisStore, including TTL expiry and the semantic candidate
// index, without any external dependency.
type memoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	semantic map[string]struct{}
}

type memoryEntry struct {
	entry    types.CacheEntry
	expireAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		entries:  make(map[string]memoryEntry),
		semantic: make(map[string]struct{}),
	}
}

func (s *memoryStore) Get(ctx context.Context, key string) (types.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return types.CacheEntry{}, false, nil
	}
	if !e.expireAt.IsZero() && time.Now().After(e.expireAt) {
		return types.CacheEntry{}, false, nil
	}
	return e.entry, true, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, entry types.CacheEntry, ttl time.Duration, semantic bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	s.entries[key] = memoryEntry{entry: entry, expireAt: expireAt}
	if semantic {
		s.semantic[key] = struct{}{}
	}
	return nil
}

func (s *memoryStore) ScanRecent(ctx context.Context, limit int) ([]types.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	candidates := make([]types.CacheEntry, 0, len(s.semantic))
	for key := range s.semantic {
		e, ok := s.entries[key]
		if !ok || (!e.expireAt.IsZero() && now.After(e.expireAt)) {
			continue
		}
		candidates = append(candidates, e.entry)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (s *memoryStore) PruneSemanticCandidates(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type keyed struct {
		key     string
		created time.Time
	}
	all := make([]keyed, 0, len(s.semantic))
	for key := range s.semantic {
		e, ok := s.entries[key]
		if !ok {
			continue
		}
		all = append(all, keyed{key: key, created: e.entry.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.After(all[j].created) })
	if len(all) <= keep {
		return nil
	}
	for _, k := range all[keep:] {
		delete(s.semantic, k.key)
	}
	return nil
}
