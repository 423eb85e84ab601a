package cache

import (
	"context"
	"time"

	"github.com/policyqa/core/internal/types"
)

// Store is the persistence port the three cache stages share. Stage A/B
// keys are exact/normalized-hash strings; Stage C additionally needs the
// bounded recent-entries scan used to build its candidate set.
type Store interface {
	// Get returns the entry stored under key, or ok=false if absent/expired.
	Get(ctx context.Context, key string) (types.CacheEntry, bool, error)
	// Set stores an entry under key with the given TTL, and additionally
	// indexes it into the semantic candidate set when semantic is true.
	Set(ctx context.Context, key string, entry types.CacheEntry, ttl time.Duration, semantic bool) error
	// ScanRecent returns up to limit semantic-indexed entries, most
	// recently created first, for Stage C candidate scoring.
	ScanRecent(ctx context.Context, limit int) ([]types.CacheEntry, error)
	// PruneSemanticCandidates trims the semantic candidate index down to
	// its most recent keep entries (the ADD background sweep task).
	PruneSemanticCandidates(ctx context.Context, keep int) error
}
