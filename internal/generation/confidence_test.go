package generation

import (
	"testing"

	"github.com/policyqa/core/internal/types"
)

func TestPreAnswerScoreEmptyIsZero(t *testing.T) {
	if got := PreAnswerScore(nil); got != 0 {
		t.Errorf("expected 0 for no documents, got %f", got)
	}
}

func TestPreAnswerScoreHigherWithAgreementAndVolume(t *testing.T) {
	strong := []types.RetrievedDocument{
		{FinalScore: 0.9}, {FinalScore: 0.88}, {FinalScore: 0.91},
	}
	weak := []types.RetrievedDocument{
		{FinalScore: 0.9}, {FinalScore: 0.1},
	}
	if PreAnswerScore(strong) <= PreAnswerScore(weak) {
		t.Errorf("expected high-agreement, full top-3 set to score higher than a sparse, disagreeing set")
	}
}

func TestPostAnswerScoreHighWhenAnswerEchoesSource(t *testing.T) {
	docs := []types.RetrievedDocument{
		{Chunk: types.Chunk{Text: "the annual deductible is five hundred dollars"}},
	}
	score := PostAnswerScore("the annual deductible is five hundred dollars", docs, 3)
	if score < 0.9 {
		t.Errorf("expected near-perfect grounding for an answer copied from its source, got %f", score)
	}
}

func TestPostAnswerScoreLowWhenUnrelated(t *testing.T) {
	docs := []types.RetrievedDocument{
		{Chunk: types.Chunk{Text: "the annual deductible is five hundred dollars"}},
	}
	score := PostAnswerScore("bananas are yellow fruit grown in tropical climates", docs, 3)
	if score > 0.1 {
		t.Errorf("expected near-zero grounding for an unrelated answer, got %f", score)
	}
}

func TestPostAnswerScoreEmptyAnswerIsZero(t *testing.T) {
	docs := []types.RetrievedDocument{{Chunk: types.Chunk{Text: "some source text"}}}
	if got := PostAnswerScore("", docs, 3); got != 0 {
		t.Errorf("expected 0 for an empty answer, got %f", got)
	}
}

func TestCombineWithoutJudge(t *testing.T) {
	got := Combine(0.8, 0.6, nil)
	want := float32(0.7)
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected simple average %f, got %f", want, got)
	}
}

func TestCombineWithJudge(t *testing.T) {
	judge := float32(1.0)
	got := Combine(0.5, 0.5, &judge)
	want := float32(2.0 / 3.0)
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("expected three-way average %f, got %f", want, got)
	}
}
