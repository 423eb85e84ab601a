// Package cache implements the three-stage semantic cache: an exact
// hash match (Stage A), a normalized-text hash match (Stage B), and a
// validated semantic match (Stage C) gated on both embedding cosine
// similarity and retrieved-chunk-ID overlap so a high-similarity-but-wrong
// cache hit never reaches a user.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/policyqa/core/internal/cache/normalize"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// RetrieveIDsOnly runs a cheap dense-only retrieval and returns the set of
// chunk IDs it would surface, used to validate a Stage C candidate without
// importing internal/retrieval; the caller supplies it as a closure over
// the dense store.
type RetrieveIDsOnly func(ctx context.Context, embedding []float32) (map[string]struct{}, error)

// Options configures a Cache.
type Options struct {
	ExactTTL           time.Duration
	SemanticTTL        time.Duration
	SimThreshold       float64
	OverlapThreshold   float64
	SemanticCandidates int
	EnableSemantic     bool
}

// Cache is the concrete interfaces.Cache implementation.
type Cache struct {
	store           Store
	retrieveIDsOnly RetrieveIDsOnly
	opts            Options
}

// New builds a Cache backed by Redis, falling back to an in-process store
// (degrade, never fail startup) when Redis is unreachable.
func New(redisAddr, redisPassword string, redisDB int, redisPrefix string,
	retrieveIDsOnly RetrieveIDsOnly, opts Options,
) *Cache {
	store, err := newRedisStore(redisAddr, redisPassword, redisDB, redisPrefix)
	if err != nil {
		logger.Warnf(context.Background(), "cache: redis unavailable, degrading to in-memory store: %v", err)
		return &Cache{store: newMemoryStore(), retrieveIDsOnly: retrieveIDsOnly, opts: opts}
	}
	return &Cache{store: store, retrieveIDsOnly: retrieveIDsOnly, opts: opts}
}

// NewWithStore builds a Cache over an arbitrary Store, used by tests.
func NewWithStore(store Store, retrieveIDsOnly RetrieveIDsOnly, opts Options) *Cache {
	return &Cache{store: store, retrieveIDsOnly: retrieveIDsOnly, opts: opts}
}

// Get looks up q across the three stages in order, returning the first hit.
// Any store error degrades to a miss.
func (c *Cache) Get(ctx context.Context, q types.Query, embedding []float32) (*types.Answer, types.CacheStage, bool) {
	if entry, ok := c.getStage(ctx, exactKey(q.Text)); ok {
		return hit(entry, types.CacheStageExact)
	}

	normalized := normalize.Normalize(q.Text)
	if entry, ok := c.getStage(ctx, normalizedKey(normalized)); ok {
		return hit(entry, types.CacheStageNormalized)
	}

	if !c.opts.EnableSemantic || len(embedding) == 0 {
		return nil, "", false
	}

	entry, ok := c.semanticMatch(ctx, embedding)
	if !ok {
		return nil, "", false
	}
	return hit(entry, types.CacheStageSemantic)
}

// Put stores the answer under its exact and normalized keys, and indexes it
// for future Stage C candidate scans. Store errors are logged and
// swallowed: a failed write degrades to "this answer was never cached",
// never to an error surfaced to the caller.
func (c *Cache) Put(ctx context.Context, q types.Query, embedding []float32, answer types.Answer) error {
	normalized := normalize.Normalize(q.Text)

	entry := types.CacheEntry{
		Key:            exactKey(q.Text),
		NormalizedText: normalized,
		Embedding:      embedding,
		TermSet:        chunkIDsOf(answer),
		Answer:         answer,
		CreatedAt:      time.Now(),
	}

	if err := c.store.Set(ctx, entry.Key, entry, c.opts.ExactTTL, false); err != nil {
		logger.Warnf(ctx, "cache: put stage A failed, degrading: %v", err)
		return nil
	}

	normEntry := entry
	normEntry.Key = normalizedKey(normalized)
	if err := c.store.Set(ctx, normEntry.Key, normEntry, c.opts.ExactTTL, false); err != nil {
		logger.Warnf(ctx, "cache: put stage B failed, degrading: %v", err)
		return nil
	}

	if c.opts.EnableSemantic && len(embedding) > 0 {
		semEntry := entry
		semEntry.Key = semanticKey(q.SessionID, q.Text, entry.CreatedAt)
		if err := c.store.Set(ctx, semEntry.Key, semEntry, c.opts.SemanticTTL, true); err != nil {
			logger.Warnf(ctx, "cache: put stage C index failed, degrading: %v", err)
		}
	}

	return nil
}

func (c *Cache) getStage(ctx context.Context, key string) (types.CacheEntry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warnf(ctx, "cache: get %q failed, degrading to miss: %v", key, err)
		return types.CacheEntry{}, false
	}
	return entry, ok
}

// semanticMatch implements Stage C: scan the bounded recent-entries
// candidate set, rank by cosine similarity, and accept the
// highest-similarity candidate whose similarity clears SimThreshold AND
// whose chunk-ID overlap (validated against a fresh cheap retrieval)
// clears OverlapThreshold.
func (c *Cache) semanticMatch(ctx context.Context, embedding []float32) (types.CacheEntry, bool) {
	candidates, err := c.store.ScanRecent(ctx, c.opts.SemanticCandidates)
	if err != nil {
		logger.Warnf(ctx, "cache: stage C scan failed, degrading to miss: %v", err)
		return types.CacheEntry{}, false
	}
	if len(candidates) == 0 {
		return types.CacheEntry{}, false
	}

	type scored struct {
		entry types.CacheEntry
		sim   float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		sim := cosineSimilarity(embedding, cand.Embedding)
		if sim >= c.opts.SimThreshold {
			ranked = append(ranked, scored{entry: cand, sim: sim})
		}
	}
	if len(ranked) == 0 {
		return types.CacheEntry{}, false
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })

	if c.retrieveIDsOnly == nil {
		return types.CacheEntry{}, false
	}
	freshIDs, err := c.retrieveIDsOnly(ctx, embedding)
	if err != nil {
		logger.Warnf(ctx, "cache: stage C validation retrieval failed, degrading to miss: %v", err)
		return types.CacheEntry{}, false
	}

	for _, cand := range ranked {
		if jaccardOverlap(cand.entry.TermSet, freshIDs) >= c.opts.OverlapThreshold {
			return cand.entry, true
		}
	}
	return types.CacheEntry{}, false
}

func hit(entry types.CacheEntry, stage types.CacheStage) (*types.Answer, types.CacheStage, bool) {
	answer := entry.Answer
	answer.FromCache = true
	answer.CacheStage = stage
	return &answer, stage, true
}

func exactKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "exact:" + hex.EncodeToString(sum[:])
}

func normalizedKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "norm:" + hex.EncodeToString(sum[:])
}

func semanticKey(sessionID, text string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + text + "|" + createdAt.String()))
	return "sem:" + hex.EncodeToString(sum[:])
}

func chunkIDsOf(answer types.Answer) []string {
	ids := make([]string, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		ids = append(ids, c.ChunkID)
	}
	return ids
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// jaccardOverlap compares the chunk IDs a cached answer was grounded on
// against the chunk IDs a fresh cheap retrieval surfaces for the new
// query: a high embedding similarity whose underlying evidence has
// drifted (the indexed documents changed, or the two queries only sound
// alike) is rejected here even though it cleared the cosine gate.
func jaccardOverlap(cachedChunkIDs []string, freshIDs map[string]struct{}) float64 {
	if len(cachedChunkIDs) == 0 || len(freshIDs) == 0 {
		return 0
	}
	cachedSet := make(map[string]struct{}, len(cachedChunkIDs))
	for _, id := range cachedChunkIDs {
		cachedSet[id] = struct{}{}
	}

	intersection := 0
	for id := range freshIDs {
		if _, ok := cachedSet[id]; ok {
			intersection++
		}
	}
	union := len(cachedSet) + len(freshIDs) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

var _ interfaces.Cache = (*Cache)(nil)
