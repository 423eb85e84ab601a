package rerank

import (
	"context"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// CrossEncoderClient adapts a Reranker backend into the abstract
// interfaces.CrossEncoder port, the first of the two reranker stages.
// It is always available: the cross-encoder pass is mandatory,
// unlike the optional second-stage neural reranker.
type CrossEncoderClient struct {
	reranker Reranker
}

// NewCrossEncoderClient wraps a Reranker as a CrossEncoder.
func NewCrossEncoderClient(reranker Reranker) *CrossEncoderClient {
	return &CrossEncoderClient{reranker: reranker}
}

// Score runs one batched rerank call and returns scores in candidate order.
func (c *CrossEncoderClient) Score(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	return scoreBatch(ctx, c.reranker, query, candidates)
}

// NeuralRerankerClient adapts a Reranker backend (a dedicated, typically
// stronger model) into the abstract interfaces.NeuralReranker port, the
// preferred second reranker stage.
type NeuralRerankerClient struct {
	reranker Reranker
}

// NewNeuralRerankerClient wraps a Reranker as a NeuralReranker.
func NewNeuralRerankerClient(reranker Reranker) *NeuralRerankerClient {
	return &NeuralRerankerClient{reranker: reranker}
}

// Rerank runs one batched rerank call and returns scores in candidate order.
func (n *NeuralRerankerClient) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	return scoreBatch(ctx, n.reranker, query, candidates)
}

// Available reports whether a Reranker backend is configured. The rerank
// stage (rerank.Reranker) falls back to the LLM reranker when Available
// reports false or when a Rerank call fails.
func (n *NeuralRerankerClient) Available(ctx context.Context) bool {
	return n.reranker != nil
}

// NullNeuralReranker is used when no dedicated neural reranker model is
// configured; Available always reports false so the rerank stage always
// falls back to the LLM reranker.
type NullNeuralReranker struct{}

func (NullNeuralReranker) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	return nil, nil
}

func (NullNeuralReranker) Available(ctx context.Context) bool {
	return false
}

func scoreBatch(ctx context.Context, reranker Reranker, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = cand.Chunk.Text
	}

	results, err := reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil, err
	}

	scores := make([]float32, len(candidates))
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = float32(r.RelevanceScore)
		}
	}
	return scores, nil
}

var (
	_ interfaces.CrossEncoder   = (*CrossEncoderClient)(nil)
	_ interfaces.NeuralReranker = (*NeuralRerankerClient)(nil)
	_ interfaces.NeuralReranker = NullNeuralReranker{}
)
