package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/policyqa/core/internal/types"
)

func exchange(q, a string) types.ConversationExchange {
	return types.ConversationExchange{Query: q, Answer: a, Timestamp: time.Unix(0, 0)}
}

func TestAppendAndHistoryRoundTrip(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	ctx := context.Background()

	if err := m.Append(ctx, "s1", exchange("q1", "a1")); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	history, summary, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].Query != "q1" {
		t.Errorf("expected 1 exchange in history, got %v", history)
	}
	if summary != nil {
		t.Errorf("expected no summary yet, got %v", summary)
	}
}

func TestAppendEvictsOldestOnOverflow(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 2, 100, time.Hour, nil)
	ctx := context.Background()

	m.Append(ctx, "s1", exchange("q1", "a1"))
	m.Append(ctx, "s1", exchange("q2", "a2"))
	m.Append(ctx, "s1", exchange("q3", "a3"))

	history, _, _ := m.History(ctx, "s1")
	if len(history) != 2 {
		t.Fatalf("expected window capped at 2, got %d", len(history))
	}
	if history[0].Query != "q2" || history[1].Query != "q3" {
		t.Errorf("expected FIFO eviction of q1, got %v", history)
	}
}

func TestClearRemovesSession(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	ctx := context.Background()
	m.Append(ctx, "s1", exchange("q1", "a1"))

	if err := m.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	history, _, _ := m.History(ctx, "s1")
	if len(history) != 0 {
		t.Errorf("expected empty history after clear, got %v", history)
	}
}

func TestStatsReportsOccupancy(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	ctx := context.Background()
	m.Append(ctx, "s1", exchange("q1", "a1"))
	m.Append(ctx, "s1", exchange("q2", "a2"))

	stats, err := m.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.ExchangeCount != 2 || stats.WindowSize != 10 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStatsOnUnknownSessionIsEmpty(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	stats, err := m.Stats(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.ExchangeCount != 0 || stats.HasSummary {
		t.Errorf("expected zero-value stats for unknown session, got %+v", stats)
	}
}

func TestIsFollowupDetectsDeicticPronoun(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	ctx := context.Background()
	m.Append(ctx, "s1", exchange("what is the policy", "it covers X"))

	followup, err := m.IsFollowup(ctx, "s1", "what does that mean")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !followup {
		t.Error("expected deictic pronoun to mark a followup")
	}
}

func TestIsFollowupFalseOnEmptyWindowForLongQuery(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	followup, err := m.IsFollowup(context.Background(), "new-session", "what is the maximum allowable deductible under the current policy document")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if followup {
		t.Error("expected a long standalone query with no history to not be a followup")
	}
}

func TestIsFollowupShortQueryWithHistory(t *testing.T) {
	m := NewWithStore(newMemoryStore(), 10, 5, time.Hour, nil)
	ctx := context.Background()
	m.Append(ctx, "s1", exchange("what is the deductible", "$500"))

	followup, err := m.IsFollowup(ctx, "s1", "and the copay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !followup {
		t.Error("expected short query against non-empty window to be a followup")
	}
}
