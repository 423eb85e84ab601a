// Package generation builds the final, grounded answer from a retrieval
// result: prompt construction, streaming token delivery, and the
// dual-signal confidence score.
package generation

import (
	"context"
	"strings"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// Generator implements interfaces.AnswerGenerator. History and summary are
// accepted only to satisfy the interface: by the time a RetrievalResult
// reaches Generate, conversation context has already been folded into the
// documents it retrieved, so Generate itself never needs it again.
type Generator struct {
	llm            interfaces.LLMClient
	groundingNGram int
	useLLMJudge    bool
}

// New builds a Generator.
func New(llm interfaces.LLMClient, groundingNGram int, useLLMJudge bool) *Generator {
	if groundingNGram <= 0 {
		groundingNGram = 3
	}
	return &Generator{llm: llm, groundingNGram: groundingNGram, useLLMJudge: useLLMJudge}
}

var _ interfaces.AnswerGenerator = (*Generator)(nil)

// Generate produces a complete, non-streamed answer.
func (g *Generator) Generate(ctx context.Context, q types.Query, result types.RetrievalResult,
	history []types.ConversationExchange, summary *types.ConversationSummary,
) (types.Answer, error) {
	if len(result.Documents) == 0 {
		return types.Answer{Text: noRelevantInformationText, Confidence: 0}, nil
	}

	prompt, citations := buildPrompt(q.Text, result.Documents)
	pre := PreAnswerScore(result.Documents)

	text, err := g.llm.Complete(ctx, systemPreamble, prompt)
	if err != nil {
		return types.Answer{
			Text:           generationFailedText,
			Citations:      citations,
			Confidence:     0,
			RetrievalScore: pre,
		}, nil
	}

	post := PostAnswerScore(text, result.Documents, g.groundingNGram)
	judge := g.maybeJudge(ctx, q.Text, text, result.Documents)

	return types.Answer{
		Text:           text,
		Citations:      citations,
		Confidence:     Combine(pre, post, judge),
		RetrievalScore: pre,
		GroundingScore: post,
	}, nil
}

// GenerateStream produces the same answer as Generate, but pushes tokens
// over a channel as the LLM produces them and folds the final citations
// and confidence into the terminal Done chunk.
// Cancellation of ctx stops forwarding further tokens immediately.
func (g *Generator) GenerateStream(ctx context.Context, q types.Query, result types.RetrievalResult,
	history []types.ConversationExchange, summary *types.ConversationSummary,
) (<-chan types.StreamChunk, error) {
	out := make(chan types.StreamChunk)

	if len(result.Documents) == 0 {
		go func() {
			defer close(out)
			out <- types.StreamChunk{Token: noRelevantInformationText}
			out <- types.StreamChunk{Done: true, Confidence: 0}
		}()
		return out, nil
	}

	prompt, citations := buildPrompt(q.Text, result.Documents)
	pre := PreAnswerScore(result.Documents)

	upstream, err := g.llm.CompleteStream(ctx, systemPreamble, prompt)
	if err != nil {
		go func() {
			defer close(out)
			out <- types.StreamChunk{Token: generationFailedText}
			out <- types.StreamChunk{Done: true, Citations: citations, Confidence: 0}
		}()
		return out, nil
	}

	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range upstream {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if chunk.Token != "" {
				full.WriteString(chunk.Token)
				out <- types.StreamChunk{Token: chunk.Token}
			}
			if chunk.Done {
				text := full.String()
				post := PostAnswerScore(text, result.Documents, g.groundingNGram)
				judge := g.maybeJudge(ctx, q.Text, text, result.Documents)
				out <- types.StreamChunk{
					Done:       true,
					Citations:  citations,
					Confidence: Combine(pre, post, judge),
				}
				return
			}
		}
	}()
	return out, nil
}

func (g *Generator) maybeJudge(ctx context.Context, query, answer string, docs []types.RetrievedDocument) *float32 {
	if !g.useLLMJudge {
		return nil
	}
	return JudgeScore(ctx, g.llm, query, answer, docs)
}
