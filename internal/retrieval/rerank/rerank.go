package rerank

import (
	"context"
	"sort"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// defaultAlpha is the cross-encoder weight in the final fusion:
// final = α·cross_encoder_score + (1-α)·reranker_score.
const defaultAlpha = 0.7

// Reranker runs the full two-stage pipeline and applies final score
// fusion, returning candidates sorted descending by final score.
type Reranker struct {
	crossEncoder   interfaces.CrossEncoder
	neuralReranker interfaces.NeuralReranker
	llmFallback    interfaces.NeuralReranker
	alpha          float64
}

// New builds a Reranker. neuralReranker may be a null implementation
// (Available()==false) to always fall through to llmFallback, following
// the capability-interface-with-a-null-implementation pattern.
func New(crossEncoder interfaces.CrossEncoder, neuralReranker, llmFallback interfaces.NeuralReranker, alpha float64) *Reranker {
	if alpha == 0 {
		alpha = defaultAlpha
	}
	return &Reranker{
		crossEncoder:   crossEncoder,
		neuralReranker: neuralReranker,
		llmFallback:    llmFallback,
		alpha:          alpha,
	}
}

// Rerank scores candidates with the cross-encoder, then with the neural
// reranker when available (falling back to the LLM reranker otherwise, or
// on a neural-reranker call failure), and fuses both scores into
// FinalScore. If the cross-encoder fails, candidates are returned sorted
// descending by FusedScore, with FinalScore copied from FusedScore.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]types.RetrievedDocument, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	crossScores, err := r.crossEncoder.Score(ctx, query, candidates)
	if err != nil {
		logger.Warnf(ctx, "rerank: cross-encoder failed, returning fused-score order: %v", err)
		out := passthrough(candidates)
		sortByFinalScoreDesc(out)
		return out, nil
	}

	rerankScores, rerankerUsed := r.secondStage(ctx, query, candidates)

	out := make([]types.RetrievedDocument, len(candidates))
	for i, cand := range candidates {
		cand.CrossScore = crossScores[i]
		if rerankerUsed {
			cand.RerankScore = rerankScores[i]
			cand.FinalScore = float32(r.alpha)*cand.CrossScore + float32(1-r.alpha)*cand.RerankScore
		} else {
			cand.FinalScore = cand.CrossScore
		}
		out[i] = cand
	}

	sortByFinalScoreDesc(out)
	return out, nil
}

func (r *Reranker) secondStage(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, bool) {
	if r.neuralReranker != nil && r.neuralReranker.Available(ctx) {
		scores, err := r.neuralReranker.Rerank(ctx, query, candidates)
		if err == nil {
			return scores, true
		}
		logger.Warnf(ctx, "rerank: neural reranker failed, falling back to LLM reranker: %v", err)
	}
	if r.llmFallback != nil && r.llmFallback.Available(ctx) {
		scores, err := r.llmFallback.Rerank(ctx, query, candidates)
		if err == nil {
			return scores, true
		}
		logger.Warnf(ctx, "rerank: llm reranker fallback failed: %v", err)
	}
	return nil, false
}

func passthrough(candidates []types.RetrievedDocument) []types.RetrievedDocument {
	out := make([]types.RetrievedDocument, len(candidates))
	for i, cand := range candidates {
		cand.FinalScore = cand.FusedScore
		out[i] = cand
	}
	return out
}

func sortByFinalScoreDesc(docs []types.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].FinalScore > docs[j].FinalScore })
	for i := range docs {
		docs[i].Rank = i + 1
	}
}
