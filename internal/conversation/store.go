// Package conversation implements the sliding-window session memory:
// a bounded FIFO of recent exchanges, a cumulative LLM-produced summary of
// what has aged out, follow-up detection, and the pure query-enhancement
// rewrite used by the retrieval stage. It mirrors internal/cache's
// Redis-primary/in-memory-fallback store split, since both packages hold
// small, frequently-read, TTL-bounded per-key state.
package conversation

import (
	"context"
	"time"

	"github.com/policyqa/core/internal/types"
)

// sessionState is the full persisted state for one conversation session.
type sessionState struct {
	Exchanges        []types.ConversationExchange `json:"exchanges"`
	Summary          *types.ConversationSummary   `json:"summary,omitempty"`
	PendingDisplaced []types.ConversationExchange `json:"pending_displaced,omitempty"`
	AddCount         int                          `json:"add_count"`
	TurnCount        int                          `json:"turn_count"`
	LastActivity     time.Time                    `json:"last_activity"`
}

// Store is the persistence port for session state.
type Store interface {
	Get(ctx context.Context, sessionID string) (sessionState, bool, error)
	Save(ctx context.Context, sessionID string, state sessionState, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
}
