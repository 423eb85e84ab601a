package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/policyqa/core/internal/types"
)

type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubLLM) CompleteStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan types.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func TestRunSummarizeUpdatesSessionSummary(t *testing.T) {
	store := newMemoryStore()
	llm := &stubLLM{reply: "the user discussed dental coverage limits."}
	m := NewWithStore(store, 10, 5, time.Hour, llm)

	ctx := context.Background()
	store.Save(ctx, "s1", sessionState{Exchanges: []types.ConversationExchange{exchange("q1", "a1")}}, time.Hour)

	displaced := []types.ConversationExchange{exchange("q0", "a0")}
	err := m.runSummarize(ctx, summarizeTaskPayload{SessionID: "s1", Displaced: displaced, ThroughTurn: 5}, "")
	if err != nil {
		t.Fatalf("runSummarize failed: %v", err)
	}

	state, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("expected session state to still exist: ok=%v err=%v", ok, err)
	}
	if state.Summary == nil || state.Summary.Text != llm.reply {
		t.Errorf("expected summary text to be set from LLM reply, got %+v", state.Summary)
	}
	if state.Summary.ThroughTurn != 5 {
		t.Errorf("expected through-turn recorded, got %d", state.Summary.ThroughTurn)
	}
}

func TestRunSummarizeTruncatesOverlongSummary(t *testing.T) {
	store := newMemoryStore()
	longReply := strings.Repeat("word ", 300)
	llm := &stubLLM{reply: longReply}
	m := NewWithStore(store, 10, 5, time.Hour, llm)

	ctx := context.Background()
	store.Save(ctx, "s1", sessionState{}, time.Hour)

	err := m.runSummarize(ctx, summarizeTaskPayload{SessionID: "s1", Displaced: []types.ConversationExchange{exchange("q", "a")}}, "")
	if err != nil {
		t.Fatalf("runSummarize failed: %v", err)
	}

	state, _, _ := store.Get(ctx, "s1")
	words := strings.Fields(state.Summary.Text)
	if len(words) != maxSummaryWords {
		t.Errorf("expected summary truncated to %d words, got %d", maxSummaryWords, len(words))
	}
}

func TestRunSummarizeSkipsWhenLLMMissing(t *testing.T) {
	store := newMemoryStore()
	m := NewWithStore(store, 10, 5, time.Hour, nil)
	ctx := context.Background()
	store.Save(ctx, "s1", sessionState{}, time.Hour)

	err := m.runSummarize(ctx, summarizeTaskPayload{SessionID: "s1", Displaced: []types.ConversationExchange{exchange("q", "a")}}, "")
	if err != nil {
		t.Fatalf("expected no error when LLM is nil, got %v", err)
	}
}

func TestRunSummarizeDegradesOnLLMError(t *testing.T) {
	store := newMemoryStore()
	llm := &stubLLM{err: errors.New("timeout")}
	m := NewWithStore(store, 10, 5, time.Hour, llm)
	ctx := context.Background()
	store.Save(ctx, "s1", sessionState{}, time.Hour)

	err := m.runSummarize(ctx, summarizeTaskPayload{SessionID: "s1", Displaced: []types.ConversationExchange{exchange("q", "a")}}, "")
	if err != nil {
		t.Fatalf("expected summarization failure to degrade silently, got %v", err)
	}
	state, _, _ := store.Get(ctx, "s1")
	if state.Summary != nil {
		t.Errorf("expected no summary written on LLM error, got %+v", state.Summary)
	}
}
