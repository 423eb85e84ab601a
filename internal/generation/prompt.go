package generation

import (
	"fmt"
	"strings"

	"github.com/policyqa/core/internal/types"
)

// maxDocChars is the per-document truncation cap, shared with the reranker stage's identical truncation.
const maxDocChars = 3200

// systemPreamble is the fixed instruction prefix every generation prompt
// carries: answer only from sources, say so when insufficient,
// cite by filename+page, no speculation.
const systemPreamble = "You answer questions about policy documents using only the provided " +
	"source excerpts. If the sources do not contain enough information to answer, say so " +
	"explicitly rather than guessing. Cite every claim by its source file and page number " +
	"in the form [i]. Never speculate or use outside knowledge."

// noRelevantInformationText is the fixed response returned for an empty
// document list, without calling the LLM.
const noRelevantInformationText = "No relevant information was found in the available policy documents to answer this question."

// generationFailedText is returned when every LLM retry is exhausted.
const generationFailedText = "Answer generation failed after repeated attempts. The retrieved sources below may still be relevant."

// buildPrompt renders the numbered, truncated document list plus the
// original query, and the parallel citation list the
// final Answer/StreamChunk carries.
func buildPrompt(query string, docs []types.RetrievedDocument) (string, []types.SourceCitation) {
	var b strings.Builder
	citations := make([]types.SourceCitation, 0, len(docs))

	for i, doc := range docs {
		text := doc.Chunk.Text
		snippet := text
		if len(snippet) > maxDocChars {
			snippet = snippet[:maxDocChars]
		}
		fmt.Fprintf(&b, "[%d] %s p.%d\n%s\n\n", i+1, sourceLabel(doc.Chunk), doc.Chunk.Page, snippet)

		citations = append(citations, types.SourceCitation{
			ChunkID:    doc.Chunk.ID,
			DocumentID: doc.Chunk.DocumentID,
			Section:    doc.Chunk.Section,
			Page:       doc.Chunk.Page,
			Snippet:    snippet,
			Score:      doc.FinalScore,
		})
	}

	b.WriteString("Question: ")
	b.WriteString(query)

	return b.String(), citations
}

// sourceLabel prefers the chunk's section (closer to a human-readable
// "filename" for a policy document section) and falls back to the
// document id.
func sourceLabel(chunk types.Chunk) string {
	if chunk.Section != "" {
		return chunk.Section
	}
	return chunk.DocumentID
}
