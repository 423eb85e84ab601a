// Package fusion implements the pure rank-combination functions the hybrid
// and advanced retrieval strategies use: Reciprocal Rank Fusion across
// retriever lists and rank-vote aggregation across
// multiple query-variant result lists.
package fusion

import (
	"sort"

	"github.com/policyqa/core/internal/types"
)

// DefaultK is the standard RRF smoothing constant.
const DefaultK = 60

// RRF combines one or more ranked lists of the same chunks into a single
// fused ranking: rrf_score = Σ 1/(k+rank) over every list the chunk
// appears in. Ties on fused score break on the lowest (best) rank the
// chunk held in any list. k <= 0 uses DefaultK.
func RRF(k int, lists ...[]types.RetrievedDocument) []types.RetrievedDocument {
	if k <= 0 {
		k = DefaultK
	}
	type accumulator struct {
		doc      types.RetrievedDocument
		score    float32
		bestRank int
	}

	byID := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, doc := range list {
			acc, ok := byID[doc.Chunk.ID]
			if !ok {
				acc = &accumulator{doc: doc, bestRank: rank}
				byID[doc.Chunk.ID] = acc
				order = append(order, doc.Chunk.ID)
			}
			acc.score += 1.0 / float32(k+rank+1)
			if rank < acc.bestRank {
				acc.bestRank = rank
			}
			// Preserve the richest per-stage scores seen for this chunk.
			if doc.DenseScore > acc.doc.DenseScore {
				acc.doc.DenseScore = doc.DenseScore
			}
			if doc.SparseScore > acc.doc.SparseScore {
				acc.doc.SparseScore = doc.SparseScore
			}
		}
	}

	fused := make([]types.RetrievedDocument, 0, len(order))
	for _, id := range order {
		acc := byID[id]
		acc.doc.FusedScore = acc.score
		fused = append(fused, acc.doc)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		return byID[fused[i].Chunk.ID].bestRank < byID[fused[j].Chunk.ID].bestRank
	})

	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}

// RankVote aggregates the result lists retrieved for the original query
// and each LLM-generated variant by applying RRF across them: a chunk's
// vote score is Σ 1/(k+rank) over every variant list it appears in,
// rewarding chunks multiple variants agree on.
func RankVote(k int, variantLists ...[]types.RetrievedDocument) []types.RetrievedDocument {
	return RRF(k, variantLists...)
}
