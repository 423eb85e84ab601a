package generation

import (
	"context"
	"math"
	"strings"

	"github.com/policyqa/core/internal/common"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// preAnswerTopN is how many top-ranked documents feed the pre-answer
// retrieval-quality signal.
const preAnswerTopN = 3

// PreAnswerScore is the retrieval-quality confidence signal: the
// mean of the top-3 final scores, scaled down when fewer documents were
// retrieved than expected and when the top scores disagree widely with
// each other. It needs nothing generation produces, so the orchestrator
// can compute it the moment retrieval returns, concurrently with the LLM
// call.
func PreAnswerScore(docs []types.RetrievedDocument) float32 {
	if len(docs) == 0 {
		return 0
	}
	top := docs
	if len(top) > preAnswerTopN {
		top = top[:preAnswerTopN]
	}

	var sum float64
	scores := make([]float64, 0, len(top))
	for _, d := range top {
		s := clamp01(float64(d.FinalScore))
		sum += s
		scores = append(scores, s)
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		diff := s - mean
		variance += diff * diff
	}
	variance /= float64(len(scores))
	agreement := 1 - math.Min(1, math.Sqrt(variance)*2) // tight agreement among top scores -> near 1

	countFactor := math.Min(1, float64(len(docs))/float64(preAnswerTopN))

	return float32(clamp01(0.6*mean + 0.2*agreement + 0.2*countFactor))
}

// PostAnswerScore is the post-answer grounding signal: the fraction
// of the answer's n-grams that also appear somewhere in the retrieved
// source text, a lightweight stand-in for verifying every claim is
// traceable to a cited document.
func PostAnswerScore(answer string, docs []types.RetrievedDocument, n int) float32 {
	if n <= 0 {
		n = 3
	}
	answerGrams := nGrams(answer, n)
	if len(answerGrams) == 0 {
		return 0
	}

	sourceGrams := make(map[string]struct{})
	for _, d := range docs {
		for g := range nGrams(d.Chunk.Text, n) {
			sourceGrams[g] = struct{}{}
		}
	}

	var matched int
	for g := range answerGrams {
		if _, ok := sourceGrams[g]; ok {
			matched++
		}
	}
	return float32(clamp01(float64(matched) / float64(len(answerGrams))))
}

// Combine fuses the pre- and post-answer signals, and the optional
// LLM-as-judge score when enabled, into the final [0,1] confidence score.
func Combine(pre, post float32, judge *float32) float32 {
	if judge != nil {
		return float32(clamp01((float64(pre) + float64(post) + float64(*judge)) / 3))
	}
	return float32(clamp01((float64(pre) + float64(post)) / 2))
}

const judgeSystemPrompt = `You rate how well an answer is grounded in its cited sources.
Reply with strict JSON: {"score": <integer 1-10>}. 10 means every claim in the answer is
directly supported by the sources; 1 means the answer is unsupported or contradicts them.`

// JudgeScore is the optional LLM-as-judge pass, gated by GenerationConfig.UseLLMJudge since it adds
// an extra LLM round trip to every answer.
func JudgeScore(ctx context.Context, llm interfaces.LLMClient, query, answer string, docs []types.RetrievedDocument) *float32 {
	if llm == nil {
		return nil
	}
	prompt, _ := buildPrompt(query, docs)
	userPrompt := prompt + "\n\nCandidate answer:\n" + answer

	raw, err := llm.Complete(ctx, judgeSystemPrompt, userPrompt)
	if err != nil {
		logger.Warnf(ctx, "llm-as-judge confidence pass failed, omitting: %v", err)
		return nil
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := common.ParseLLMJsonResponse(raw, &parsed); err != nil {
		logger.Warnf(ctx, "llm-as-judge response unparseable, omitting: %v", err)
		return nil
	}
	normalized := float32(clamp01((parsed.Score - 1) / 9))
	return &normalized
}

func nGrams(text string, n int) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	grams := make(map[string]struct{})
	if len(words) < n {
		if len(words) > 0 {
			grams[strings.Join(words, " ")] = struct{}{}
		}
		return grams
	}
	for i := 0; i+n <= len(words); i++ {
		grams[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return grams
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
