package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/policyqa/core/internal/cache"
	"github.com/policyqa/core/internal/classifier"
	"github.com/policyqa/core/internal/conversation"
	apperrors "github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/stream"
	"github.com/policyqa/core/internal/types"
)

type stubEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls += len(texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }

type stubRetrieval struct {
	result types.RetrievalResult
	err    error
	calls  int
}

func (s *stubRetrieval) Retrieve(ctx context.Context, q types.Query, strategy types.Strategy, embedding []float32) (types.RetrievalResult, error) {
	s.calls++
	if s.err != nil {
		return types.RetrievalResult{}, s.err
	}
	r := s.result
	r.Strategy = strategy
	return r, nil
}

type stubGenerator struct {
	answer types.Answer
	tokens []string
	block  chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, q types.Query, result types.RetrievalResult,
	history []types.ConversationExchange, summary *types.ConversationSummary,
) (types.Answer, error) {
	if s.block != nil {
		<-s.block
	}
	return s.answer, nil
}

func (s *stubGenerator) GenerateStream(ctx context.Context, q types.Query, result types.RetrievalResult,
	history []types.ConversationExchange, summary *types.ConversationSummary,
) (<-chan types.StreamChunk, error) {
	out := make(chan types.StreamChunk, len(s.tokens)+1)
	for _, tok := range s.tokens {
		out <- types.StreamChunk{Token: tok}
	}
	out <- types.StreamChunk{Done: true, Citations: s.answer.Citations, Confidence: s.answer.Confidence}
	close(out)
	return out, nil
}

type stubAnalytics struct {
	mu    sync.Mutex
	calls int
}

func (s *stubAnalytics) Record(ctx context.Context, q types.Query, a types.Answer, e types.QueryExplanation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func testOrchestrator(t *testing.T, maxInflight int, gen *stubGenerator, retr *stubRetrieval, emb *stubEmbedder) (*Orchestrator, *stubAnalytics) {
	t.Helper()
	// Redis address is deliberately empty: both New constructors dial-fail
	// fast and degrade to their in-memory store, exactly as they would in a
	// deployment with no Redis configured (internal/cache.New, internal/conversation.New).
	c := cache.New("", "", 0, "", nil, cache.Options{
		ExactTTL: time.Hour, SemanticTTL: time.Hour, SimThreshold: 0.98,
		OverlapThreshold: 0.8, SemanticCandidates: 50, EnableSemantic: true,
	})
	mem := conversation.New("", "", 0, "", 10, 5, time.Hour, nil)
	sm := stream.NewMemoryStreamManager()
	an := &stubAnalytics{}

	o, err := New(emb, c, classifier.DefaultThresholds, retr, mem, gen, sm, an, maxInflight, time.Minute)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o, an
}

func sampleResult() types.RetrievalResult {
	return types.RetrievalResult{
		Documents: []types.RetrievedDocument{
			{Chunk: types.Chunk{ID: "c1", DocumentID: "policy.pdf", Text: "the deductible is $500"}, FinalScore: 0.9},
		},
	}
}

func TestQueryRejectsEmptyText(t *testing.T) {
	o, _ := testOrchestrator(t, 4, &stubGenerator{}, &stubRetrieval{}, &stubEmbedder{vec: []float32{1, 0}})
	_, err := o.Query(context.Background(), Request{SessionID: "s1", Text: "   "})
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Kind != apperrors.KindInvalidInput {
		t.Fatalf("expected invalid_input error, got %v", err)
	}
}

func TestQueryFullPipelinePopulatesCacheForNextCall(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{result: sampleResult()}
	gen := &stubGenerator{answer: types.Answer{Text: "the deductible is $500", Confidence: 0.8}}
	o, an := testOrchestrator(t, 4, gen, retr, emb)

	req := Request{SessionID: "s1", Text: "what is the deductible", UseConversation: true}
	resp, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CacheHit {
		t.Fatal("expected first call to miss cache")
	}
	if resp.Answer.Text != gen.answer.Text {
		t.Errorf("expected generated answer, got %+v", resp.Answer)
	}
	if retr.calls != 1 {
		t.Errorf("expected exactly one retrieval call, got %d", retr.calls)
	}

	resp2, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if !resp2.CacheHit {
		t.Fatal("expected second identical call to hit the cache")
	}
	if retr.calls != 1 {
		t.Errorf("expected cache hit to skip retrieval, retrieval calls = %d", retr.calls)
	}
	// Analytics records in a background goroutine; wait briefly for both.
	var recorded int
	for deadline := time.Now().Add(time.Second); ; time.Sleep(5 * time.Millisecond) {
		an.mu.Lock()
		recorded = an.calls
		an.mu.Unlock()
		if recorded >= 2 || time.Now().After(deadline) {
			break
		}
	}
	if recorded != 2 {
		t.Errorf("expected both calls recorded to analytics, got %d", recorded)
	}
}

func TestQueryEmbedsOriginalQueryExactlyOnceOnCacheMiss(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{result: sampleResult()}
	gen := &stubGenerator{answer: types.Answer{Text: "ok"}}
	o, _ := testOrchestrator(t, 4, gen, retr, emb)

	_, err := o.Query(context.Background(), Request{SessionID: "s1", Text: "what is covered", UseConversation: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("expected exactly one embedding call for a non-followup query, got %d", emb.calls)
	}
}

func TestQueryPropagatesDenseRetrievalFailure(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{err: apperrors.NewDependencyUnavailable("dense store unavailable")}
	gen := &stubGenerator{answer: types.Answer{Text: "ok"}}
	o, _ := testOrchestrator(t, 4, gen, retr, emb)

	_, err := o.Query(context.Background(), Request{SessionID: "s1", Text: "what is covered"})
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Kind != apperrors.KindDependencyUnavailable {
		t.Fatalf("expected dependency_unavailable error, got %v", err)
	}
}

func TestQueryRejectsWhenAdmissionPoolIsFull(t *testing.T) {
	block := make(chan struct{})
	gen := &stubGenerator{answer: types.Answer{Text: "ok"}, block: block}
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{result: sampleResult()}
	o, _ := testOrchestrator(t, 1, gen, retr, emb)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Query(context.Background(), Request{SessionID: "s1", Text: "first question"})
	}()

	// Give the first call time to occupy the single admission slot.
	time.Sleep(50 * time.Millisecond)

	_, err := o.Query(context.Background(), Request{SessionID: "s2", Text: "second question"})
	close(block)
	wg.Wait()

	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Kind != apperrors.KindRateLimited {
		t.Fatalf("expected rate_limited error while the pool is saturated, got %v", err)
	}
}

func TestQueryStreamEmitsTokensThenFinalResponse(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{result: sampleResult()}
	gen := &stubGenerator{
		answer: types.Answer{Text: "the deductible is $500", Confidence: 0.7},
		tokens: []string{"the ", "deductible ", "is $500"},
	}
	o, _ := testOrchestrator(t, 4, gen, retr, emb)

	ch, err := o.QueryStream(context.Background(), Request{SessionID: "s1", Text: "what is the deductible", UseConversation: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tokens int
	var final *Response
	for ev := range ch {
		if ev.Done {
			final = ev.Final
			continue
		}
		tokens++
	}
	if tokens != 3 {
		t.Errorf("expected 3 tokens, got %d", tokens)
	}
	if final == nil || final.Answer.Text != gen.answer.Text {
		t.Errorf("expected final response carrying the generated answer, got %+v", final)
	}
}

func TestQueryStreamCacheHitSkipsGeneration(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0, 0}}
	retr := &stubRetrieval{result: sampleResult()}
	gen := &stubGenerator{answer: types.Answer{Text: "cached answer"}}
	o, _ := testOrchestrator(t, 4, gen, retr, emb)

	req := Request{SessionID: "s1", Text: "what is the deductible"}
	if _, err := o.Query(context.Background(), req); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	ch, err := o.QueryStream(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var final *Response
	for ev := range ch {
		if ev.Done {
			final = ev.Final
		}
	}
	if final == nil || !final.CacheHit {
		t.Fatalf("expected streamed response to report a cache hit, got %+v", final)
	}
}
