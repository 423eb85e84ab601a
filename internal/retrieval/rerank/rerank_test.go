package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/policyqa/core/internal/types"
)

type stubCrossEncoder struct {
	scores []float32
	err    error
}

func (s *stubCrossEncoder) Score(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

type stubReranker struct {
	scores    []float32
	err       error
	available bool
}

func (s *stubReranker) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores, nil
}

func (s *stubReranker) Available(ctx context.Context) bool { return s.available }

func candidates() []types.RetrievedDocument {
	return []types.RetrievedDocument{
		{Chunk: types.Chunk{ID: "a"}, FusedScore: 0.5},
		{Chunk: types.Chunk{ID: "b"}, FusedScore: 0.9},
	}
}

func TestRerankFusesCrossAndNeuralScores(t *testing.T) {
	cross := &stubCrossEncoder{scores: []float32{0.6, 0.4}}
	neural := &stubReranker{scores: []float32{0.2, 0.8}, available: true}
	llm := &stubReranker{available: false}

	r := New(cross, neural, llm, 0.7)
	out, err := r.Rerank(context.Background(), "q", candidates())
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}

	// a: 0.7*0.6 + 0.3*0.2 = 0.48; b: 0.7*0.4 + 0.3*0.8 = 0.52 -> b first.
	if out[0].Chunk.ID != "b" {
		t.Errorf("expected b ranked first, got %s", out[0].Chunk.ID)
	}
	if out[0].Rank != 1 {
		t.Errorf("expected rank 1 assigned, got %d", out[0].Rank)
	}
}

func TestRerankFallsBackToLLMWhenNeuralUnavailable(t *testing.T) {
	cross := &stubCrossEncoder{scores: []float32{0.6, 0.4}}
	neural := &stubReranker{available: false}
	llm := &stubReranker{scores: []float32{0.9, 0.1}, available: true}

	r := New(cross, neural, llm, 0.5)
	out, err := r.Rerank(context.Background(), "q", candidates())
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	// a: 0.5*0.6 + 0.5*0.9 = 0.75; b: 0.5*0.4 + 0.5*0.1 = 0.25 -> a first.
	if out[0].Chunk.ID != "a" {
		t.Errorf("expected a ranked first via llm fallback, got %s", out[0].Chunk.ID)
	}
}

func TestRerankFallsBackToFusedScoreWhenCrossEncoderFails(t *testing.T) {
	cross := &stubCrossEncoder{err: errors.New("boom")}
	neural := &stubReranker{available: false}
	llm := &stubReranker{available: false}

	r := New(cross, neural, llm, 0.7)
	out, err := r.Rerank(context.Background(), "q", candidates())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out[0].Chunk.ID != "b" {
		t.Errorf("expected fused-score order (b first, FusedScore 0.9), got %s", out[0].Chunk.ID)
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	cross := &stubCrossEncoder{}
	r := New(cross, nil, nil, 0.7)
	out, err := r.Rerank(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
}
