package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/policyqa/core/internal/types"
)

type stubDense struct {
	docs []types.RetrievedDocument
	err  error
}

func (s *stubDense) Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.docs
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type stubSparse struct {
	docs      []types.RetrievedDocument
	available bool
	err       error
}

func (s *stubSparse) Search(ctx context.Context, query string, topK int) ([]types.RetrievedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.docs
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *stubSparse) Available(ctx context.Context) bool { return s.available }

type passthroughReranker struct {
	err error
}

func (p *passthroughReranker) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]types.RetrievedDocument, error) {
	if p.err != nil {
		return nil, p.err
	}
	return candidates, nil
}

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

func docAt(id string, denseScore float32) types.RetrievedDocument {
	return types.RetrievedDocument{Chunk: types.Chunk{ID: id}, DenseScore: denseScore}
}

func TestRetrieveSimpleReturnsTopThreeOfTen(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{
		docAt("a", 0.9), docAt("b", 0.8), docAt("c", 0.7), docAt("d", 0.6),
	}}
	e := New(dense, nil, nil, nil, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "what is x"}, types.StrategySimple, []float32{1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Documents) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(result.Documents))
	}
	if result.Documents[0].Chunk.ID != "a" {
		t.Errorf("expected highest dense score first, got %s", result.Documents[0].Chunk.ID)
	}
}

func TestRetrieveSimpleFatalOnDenseFailure(t *testing.T) {
	dense := &stubDense{err: errors.New("connection refused")}
	e := New(dense, nil, nil, nil, DefaultParams)

	_, err := e.Retrieve(context.Background(), types.Query{Text: "q"}, types.StrategySimple, []float32{1})
	if err == nil {
		t.Fatal("expected dense failure to be fatal")
	}
}

func TestRetrieveHybridFusesAndReranks(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{docAt("x", 0.9), docAt("y", 0.5)}}
	sparse := &stubSparse{available: true, docs: []types.RetrievedDocument{docAt("y", 0.9), docAt("x", 0.5)}}
	e := New(dense, sparse, &passthroughReranker{}, nil, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "compare x and y"}, types.StrategyHybrid, []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Errorf("expected no degrade when sparse is available")
	}
	if len(result.Documents) == 0 {
		t.Fatal("expected fused documents")
	}
}

func TestRetrieveHybridDegradesWhenSparseUnavailable(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{docAt("x", 0.9)}}
	sparse := &stubSparse{available: false}
	e := New(dense, sparse, &passthroughReranker{}, nil, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "q"}, types.StrategyHybrid, []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Degraded || result.DegradeReason == "" {
		t.Errorf("expected degrade flag/reason set, got %+v", result)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected dense-only fallback with 1 doc, got %d", len(result.Documents))
	}
}

func TestRetrieveHybridFallsBackToFusedOrderWhenRerankerFails(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{docAt("x", 0.9), docAt("y", 0.1)}}
	sparse := &stubSparse{available: true, docs: []types.RetrievedDocument{docAt("x", 0.8)}}
	e := New(dense, sparse, &passthroughReranker{err: errors.New("reranker down")}, nil, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "q"}, types.StrategyHybrid, []float32{1})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Degraded {
		t.Error("expected degrade flag set when reranker fails")
	}
	if len(result.Documents) == 0 {
		t.Fatal("expected fused documents despite reranker failure")
	}
}

func TestRetrieveAdvancedGeneratesVariantsAndAggregates(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{docAt("a", 0.9), docAt("b", 0.5)}}
	sparse := &stubSparse{available: true, docs: []types.RetrievedDocument{docAt("a", 0.7)}}
	llm := &stubLLM{reply: "what about a?\nhow does b relate to a?"}
	e := New(dense, sparse, &passthroughReranker{}, llm, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "compare a and b in detail"}, types.StrategyAdvanced, []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.QueryVariants) != 2 {
		t.Errorf("expected 2 query variants, got %d (%v)", len(result.QueryVariants), result.QueryVariants)
	}
	if len(result.Documents) == 0 {
		t.Fatal("expected aggregated documents")
	}
}

func TestRetrieveAdvancedProceedsWithoutVariantsOnLLMFailure(t *testing.T) {
	dense := &stubDense{docs: []types.RetrievedDocument{docAt("a", 0.9)}}
	sparse := &stubSparse{available: true, docs: []types.RetrievedDocument{docAt("a", 0.7)}}
	llm := &stubLLM{err: errors.New("timeout")}
	e := New(dense, sparse, &passthroughReranker{}, llm, DefaultParams)

	result, err := e.Retrieve(context.Background(), types.Query{Text: "compare a and b"}, types.StrategyAdvanced, []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.QueryVariants) != 0 {
		t.Errorf("expected no variants on LLM failure, got %v", result.QueryVariants)
	}
	if len(result.Documents) == 0 {
		t.Fatal("expected retrieval to proceed with the original query only")
	}
}

func TestRetrieveUnknownStrategy(t *testing.T) {
	e := New(&stubDense{}, nil, nil, nil, DefaultParams)
	_, err := e.Retrieve(context.Background(), types.Query{Text: "q"}, types.Strategy("bogus"), []float32{1})
	if err == nil {
		t.Fatal("expected an error for an unrecognized strategy")
	}
}
