package conversation

import (
	"context"
	"time"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// Memory implements interfaces.ConversationMemory: a per-session sliding
// window of up to WindowSize exchanges (FIFO on overflow), plus a
// cumulative summary of what has aged out, refreshed every
// SummarizeEveryTurns additions via an asynq task (summarizer.go).
type Memory struct {
	store           Store
	llm             interfaces.LLMClient
	windowSize      int
	summarizeEvery  int
	sessionTTL      time.Duration
}

// New builds a Memory backed by Redis, degrading to an in-process store
// with a logged warning if Redis is unreachable at construction — the same
// posture internal/cache.New takes, since losing conversation memory should
// never take the service down.
func New(redisAddr, redisPassword string, redisDB int, redisPrefix string, windowSize, summarizeEvery int, sessionTTL time.Duration, llm interfaces.LLMClient) *Memory {
	store, err := newRedisStore(redisAddr, redisPassword, redisDB, redisPrefix)
	if err != nil {
		logger.Warnf(context.Background(), "conversation memory: redis unavailable, falling back to in-process store: %v", err)
		return NewWithStore(newMemoryStore(), windowSize, summarizeEvery, sessionTTL, llm)
	}
	return NewWithStore(store, windowSize, summarizeEvery, sessionTTL, llm)
}

// NewWithStore builds a Memory over an explicit Store, used by tests and by
// New's Redis-unavailable fallback.
func NewWithStore(store Store, windowSize, summarizeEvery int, sessionTTL time.Duration, llm interfaces.LLMClient) *Memory {
	if windowSize <= 0 {
		windowSize = 10
	}
	if summarizeEvery <= 0 {
		summarizeEvery = 5
	}
	return &Memory{store: store, llm: llm, windowSize: windowSize, summarizeEvery: summarizeEvery, sessionTTL: sessionTTL}
}

var _ interfaces.ConversationMemory = (*Memory)(nil)

// Append records one exchange, evicting the oldest exchange once the
// window exceeds WindowSize, and enqueuing a summarization task every
// SummarizeEveryTurns additions if anything has been displaced since the
// last summary run.
func (m *Memory) Append(ctx context.Context, sessionID string, exchange types.ConversationExchange) error {
	state, _, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	state.Exchanges = append(state.Exchanges, exchange)
	state.TurnCount++
	state.AddCount++
	state.LastActivity = exchange.Timestamp

	if len(state.Exchanges) > m.windowSize {
		displaced := state.Exchanges[0]
		state.Exchanges = state.Exchanges[1:]
		state.PendingDisplaced = append(state.PendingDisplaced, displaced)
	}

	if state.AddCount >= m.summarizeEvery && len(state.PendingDisplaced) > 0 {
		if err := m.enqueueSummarize(ctx, sessionID, state.PendingDisplaced, state.TurnCount); err != nil {
			logger.Warnf(ctx, "failed to enqueue summarization task for session %s: %v", sessionID, err)
		} else {
			state.PendingDisplaced = nil
			state.AddCount = 0
		}
	}

	return m.store.Save(ctx, sessionID, state, m.sessionTTL)
}

// History returns the current sliding window and cumulative summary.
func (m *Memory) History(ctx context.Context, sessionID string) ([]types.ConversationExchange, *types.ConversationSummary, error) {
	state, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, nil
	}
	return state.Exchanges, state.Summary, nil
}

// IsFollowup applies the follow-up heuristic using the session's current window.
func (m *Memory) IsFollowup(ctx context.Context, sessionID string, query string) (bool, error) {
	state, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return isFollowup(query, ok && len(state.Exchanges) > 0), nil
}

// Clear discards all session state, including the cumulative summary.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// Stats reports the window occupancy for GET /conversation/stats.
func (m *Memory) Stats(ctx context.Context, sessionID string) (types.ConversationStats, error) {
	state, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return types.ConversationStats{}, err
	}
	if !ok {
		return types.ConversationStats{SessionID: sessionID, WindowSize: m.windowSize}, nil
	}
	return types.ConversationStats{
		SessionID:      sessionID,
		ExchangeCount:  len(state.Exchanges),
		HasSummary:     state.Summary != nil && state.Summary.Text != "",
		WindowSize:     m.windowSize,
		LastActivityAt: state.LastActivity,
	}, nil
}
