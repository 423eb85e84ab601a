// Package retrieval dispatches a classified query to one of the three
// adaptive strategies, fusing dense and sparse retrieval and handing the
// fused candidates to the two-stage reranker. Dense and sparse retrieval
// fan out and fail independently rather than sharing one combined call.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/retrieval/fusion"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// Params carries the tunable k-values for every strategy,
// sourced from config.RetrievalConfig.
type Params struct {
	SimpleDenseK      int
	DenseK            int
	SparseK           int
	RRFK              int
	FuseTopN          int
	FinalTopN         int
	AdvancedVariantK  int
	QueryVariantCount int
	VariantTimeout    time.Duration
	CrossEncoderWeight float64
}

// DefaultParams matches spec.md's stated defaults for every strategy.
var DefaultParams = Params{
	SimpleDenseK:       10,
	DenseK:             20,
	SparseK:            20,
	RRFK:               60,
	FuseTopN:           10,
	FinalTopN:          5,
	AdvancedVariantK:   15,
	QueryVariantCount:  2,
	VariantTimeout:     1500 * time.Millisecond,
	CrossEncoderWeight: 0.7,
}

// Engine implements interfaces.RetrievalEngine, dispatching on Strategy.
type Engine struct {
	dense  interfaces.VectorStore
	sparse interfaces.SparseIndex
	rerank Reranker
	llm    interfaces.LLMClient
	params Params
}

// Reranker is the narrow slice of rerank.Reranker's behavior Engine needs,
// kept as an interface so retrieval_test.go can stub it without importing
// the concrete GPU/LLM-backed implementation.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]types.RetrievedDocument, error)
}

// New builds a retrieval Engine. llm may be nil, in which case the advanced
// strategy's query-variant expansion step is skipped entirely.
func New(dense interfaces.VectorStore, sparse interfaces.SparseIndex, rr Reranker, llm interfaces.LLMClient, params Params) *Engine {
	return &Engine{dense: dense, sparse: sparse, rerank: rr, llm: llm, params: params}
}

var _ interfaces.RetrievalEngine = (*Engine)(nil)

// Retrieve dispatches to the strategy selected by the classifier.
func (e *Engine) Retrieve(ctx context.Context, q types.Query, strategy types.Strategy, embedding []float32) (types.RetrievalResult, error) {
	switch strategy {
	case types.StrategySimple:
		return e.retrieveSimple(ctx, embedding)
	case types.StrategyHybrid:
		return e.retrieveHybrid(ctx, q.Text, embedding, e.params.DenseK, e.params.SparseK, e.params.FuseTopN, e.params.FinalTopN, true)
	case types.StrategyAdvanced:
		return e.retrieveAdvanced(ctx, q, embedding)
	default:
		return types.RetrievalResult{}, errors.NewInvalidInput(fmt.Sprintf("unknown retrieval strategy %q", strategy))
	}
}

// retrieveSimple runs dense k-NN only, top 3 of top 10, no rerank.
func (e *Engine) retrieveSimple(ctx context.Context, embedding []float32) (types.RetrievalResult, error) {
	dense, err := e.dense.Search(ctx, embedding, e.params.SimpleDenseK)
	if err != nil {
		return types.RetrievalResult{}, errors.NewDependencyUnavailable("dense store unavailable").WithCause(err).WithStage("retrieve_dense")
	}
	if len(dense) > 3 {
		dense = dense[:3]
	}
	for i := range dense {
		dense[i].FinalScore = dense[i].DenseScore
		dense[i].Rank = i + 1
	}
	return types.RetrievalResult{Strategy: types.StrategySimple, Documents: dense}, nil
}

// retrieveHybrid fans out dense+sparse retrieval, RRF fuses, then optionally reranks.
// rerank is false when called from the advanced strategy's per-variant pass.
func (e *Engine) retrieveHybrid(ctx context.Context, query string, embedding []float32, denseK, sparseK, fuseTopN, finalTopN int, rerank bool) (types.RetrievalResult, error) {
	dense, sparse, degraded, reason, err := e.fanOut(ctx, query, embedding, denseK, sparseK)
	if err != nil {
		return types.RetrievalResult{}, err
	}

	fused := fusion.RRF(e.params.RRFK, dense, sparse)
	if len(fused) > fuseTopN {
		fused = fused[:fuseTopN]
	}

	result := types.RetrievalResult{Strategy: types.StrategyHybrid, Degraded: degraded, DegradeReason: reason}
	if !rerank {
		result.Documents = fused
		return result, nil
	}

	reranked, err := e.applyRerank(ctx, query, fused)
	if err != nil {
		// Reranker unavailable: return top-k by fused score, unreranked.
		logger.Warnf(ctx, "reranker unavailable, returning fused order: %v", err)
		reranked = fused
		result.Degraded = true
		result.DegradeReason = appendReason(result.DegradeReason, "reranker_unavailable")
	}
	if len(reranked) > finalTopN {
		reranked = reranked[:finalTopN]
	}
	result.Documents = reranked
	return result, nil
}

// retrieveAdvanced runs LLM query-variant expansion, per-variant
// hybrid retrieval at a smaller k, rank-vote+RRF aggregation, then a single
// rerank pass over the aggregated top 10.
func (e *Engine) retrieveAdvanced(ctx context.Context, q types.Query, embedding []float32) (types.RetrievalResult, error) {
	variants, variantsDegraded := e.generateVariants(ctx, q.Text)

	queries := append([]string{q.Text}, variants...)
	lists := make([][]types.RetrievedDocument, 0, len(queries))
	var degraded bool
	var reason string

	for _, query := range queries {
		partial, err := e.retrieveHybrid(ctx, query, embedding, e.params.AdvancedVariantK, e.params.AdvancedVariantK, e.params.AdvancedVariantK, e.params.AdvancedVariantK, false)
		if err != nil {
			return types.RetrievalResult{}, err
		}
		lists = append(lists, partial.Documents)
		if partial.Degraded {
			degraded = true
			reason = appendReason(reason, partial.DegradeReason)
		}
	}

	aggregated := fusion.RankVote(e.params.RRFK, lists...)
	if len(aggregated) > 10 {
		aggregated = aggregated[:10]
	}

	reranked, err := e.applyRerank(ctx, q.Text, aggregated)
	if err != nil {
		logger.Warnf(ctx, "reranker unavailable, returning fused order: %v", err)
		reranked = aggregated
		degraded = true
		reason = appendReason(reason, "reranker_unavailable")
	}
	if len(reranked) > e.params.FinalTopN {
		reranked = reranked[:e.params.FinalTopN]
	}

	if variantsDegraded {
		degraded = true
		reason = appendReason(reason, "query_variant_timeout")
	}

	return types.RetrievalResult{
		Strategy:      types.StrategyAdvanced,
		Documents:     reranked,
		QueryVariants: variants,
		Degraded:      degraded,
		DegradeReason: reason,
	}, nil
}

// fanOut runs dense and sparse retrieval concurrently.
// Dense failure is fatal; sparse failure degrades to dense-only.
func (e *Engine) fanOut(ctx context.Context, query string, embedding []float32, denseK, sparseK int) (dense, sparse []types.RetrievedDocument, degraded bool, reason string, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs, dErr := e.dense.Search(gctx, embedding, denseK)
		if dErr != nil {
			return errors.NewDependencyUnavailable("dense store unavailable").WithCause(dErr).WithStage("retrieve_dense")
		}
		dense = docs
		return nil
	})

	g.Go(func() error {
		if e.sparse == nil || !e.sparse.Available(gctx) {
			logger.Warnf(ctx, "sparse index unavailable, degrading to dense-only")
			degraded = true
			reason = "sparse_index_unavailable"
			return nil
		}
		docs, sErr := e.sparse.Search(gctx, query, sparseK)
		if sErr != nil {
			logger.Warnf(ctx, "sparse index search failed, degrading to dense-only: %v", sErr)
			degraded = true
			reason = "sparse_index_unavailable"
			return nil
		}
		sparse = docs
		return nil
	})

	if gErr := g.Wait(); gErr != nil {
		return nil, nil, false, "", gErr
	}
	return dense, sparse, degraded, reason, nil
}

// applyRerank runs the two-stage reranker, but only when the engine has one
// wired; a nil Reranker (e.g. in a dense-only test harness) is treated as
// "unavailable" rather than a panic.
func (e *Engine) applyRerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]types.RetrievedDocument, error) {
	if e.rerank == nil {
		return nil, errors.NewDependencyUnavailable("no reranker configured")
	}
	return e.rerank.Rerank(ctx, query, candidates)
}

// generateVariants asks the LLM for query-variant phrasings.
// A nil LLM client, an error, or exceeding the 1.5s cap all degrade to
// proceeding with the original query only.
func (e *Engine) generateVariants(ctx context.Context, query string) ([]string, bool) {
	if e.llm == nil || e.params.QueryVariantCount <= 0 {
		return nil, false
	}

	timeout := e.params.VariantTimeout
	if timeout <= 0 {
		timeout = DefaultParams.VariantTimeout
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Generate %d alternative phrasings of the following question that preserve its meaning. "+
			"Reply with one phrasing per line, no numbering, no commentary.\n\nQuestion: %s",
		e.params.QueryVariantCount, query,
	)
	out, err := e.llm.Complete(vctx, "You rewrite questions for retrieval diversity.", prompt)
	if err != nil {
		logger.Warnf(ctx, "query variant generation failed, proceeding with original query only: %v", err)
		return nil, true
	}

	variants := splitNonEmptyLines(out)
	if len(variants) > e.params.QueryVariantCount {
		variants = variants[:e.params.QueryVariantCount]
	}
	return variants, false
}

func splitNonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func appendReason(existing, next string) string {
	if existing == "" {
		return next
	}
	if next == "" {
		return existing
	}
	return existing + ";" + next
}
