package fusion

import (
	"testing"

	"github.com/policyqa/core/internal/types"
)

func doc(id string) types.RetrievedDocument {
	return types.RetrievedDocument{Chunk: types.Chunk{ID: id}}
}

func TestRRFSingleListPreservesOrder(t *testing.T) {
	list := []types.RetrievedDocument{doc("a"), doc("b"), doc("c")}
	fused := RRF(0, list)
	if len(fused) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(fused))
	}
	if fused[0].Chunk.ID != "a" || fused[1].Chunk.ID != "b" || fused[2].Chunk.ID != "c" {
		t.Errorf("expected order preserved for a single list, got %v", ids(fused))
	}
	if fused[0].Rank != 1 || fused[1].Rank != 2 {
		t.Errorf("expected ranks assigned starting at 1, got %d, %d", fused[0].Rank, fused[1].Rank)
	}
}

func TestRRFRewardsAgreementAcrossLists(t *testing.T) {
	dense := []types.RetrievedDocument{doc("x"), doc("y"), doc("z")}
	sparse := []types.RetrievedDocument{doc("z"), doc("x"), doc("w")}

	fused := RRF(0, dense, sparse)

	// "x" appears at rank 0 in dense and rank 1 in sparse: high combined score.
	// "z" appears at rank 2 in dense and rank 0 in sparse.
	// "y" and "w" each appear in only one list.
	top := fused[0].Chunk.ID
	if top != "x" && top != "z" {
		t.Errorf("expected a chunk appearing in both lists to rank first, got %s (%v)", top, ids(fused))
	}
}

func TestRRFFormula(t *testing.T) {
	fused := RRF(0, []types.RetrievedDocument{doc("only")})
	want := float32(1.0 / 61.0)
	got := fused[0].FusedScore
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected rrf score %v, got %v", want, got)
	}
}

func TestRankVoteAcrossThreeLists(t *testing.T) {
	original := []types.RetrievedDocument{doc("a"), doc("b")}
	variant1 := []types.RetrievedDocument{doc("a"), doc("c")}
	variant2 := []types.RetrievedDocument{doc("a"), doc("b")}

	fused := RankVote(0, original, variant1, variant2)
	if fused[0].Chunk.ID != "a" {
		t.Errorf("expected chunk appearing in all 3 lists to rank first, got %v", ids(fused))
	}
}

func ids(docs []types.RetrievedDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Chunk.ID
	}
	return out
}
