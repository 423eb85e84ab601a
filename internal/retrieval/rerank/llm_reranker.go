package rerank

import (
	"context"
	"fmt"
	"strings"

	"github.com/policyqa/core/internal/common"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// llmRerankSystemPrompt instructs the model to score every document in one
// call and return strict JSON: a single batched prompt, not N calls.
const llmRerankSystemPrompt = `You rate document relevance on a 1-10 scale.
Given a query and a numbered list of documents, rate every document's
relevance to the query. Respond with JSON only: {"scores": [s1, s2, ...]}
where each si is an integer 1-10, in the same order as the documents.`

// LLMReranker is the stage-two fallback used when no neural reranker is
// configured or available: one batched prompt scores every
// candidate, normalized from 1-10 to [0,1].
type LLMReranker struct {
	llm interfaces.LLMClient
}

// NewLLMReranker wraps an LLMClient as the fallback reranker.
func NewLLMReranker(llm interfaces.LLMClient) *LLMReranker {
	return &LLMReranker{llm: llm}
}

// Rerank scores every candidate in a single LLM call.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Query: %s\n\nDocuments:\n", query)
	for i, cand := range candidates {
		text := cand.Chunk.Text
		if len(text) > 3200 {
			text = text[:3200]
		}
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, text)
	}

	content, err := r.llm.Complete(ctx, llmRerankSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("llm reranker: %w", err)
	}

	var parsed struct {
		Scores []float64 `json:"scores"`
	}
	if err := common.ParseLLMJsonResponse(content, &parsed); err != nil {
		return nil, fmt.Errorf("llm reranker: parse response: %w", err)
	}

	scores := make([]float32, len(candidates))
	for i := range candidates {
		if i >= len(parsed.Scores) {
			break
		}
		// Normalize 1-10 -> [0,1].
		scores[i] = float32((parsed.Scores[i] - 1) / 9)
	}
	return scores, nil
}

// Available reports whether an LLMClient is configured; the LLM reranker
// has no other readiness check.
func (r *LLMReranker) Available(ctx context.Context) bool {
	return r.llm != nil
}

var _ interfaces.NeuralReranker = (*LLMReranker)(nil)
