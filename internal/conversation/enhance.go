package conversation

import (
	"fmt"
	"strings"

	"github.com/policyqa/core/internal/types"
)

// recentExchangesPreview is how many of the most recent exchanges are
// included verbatim in the context-enhanced query.
const recentExchangesPreview = 3

// Enhance rewrites a follow-up query into the retrieval-phase query:
// summary + recent exchanges preview + original query. It is a
// pure function of the already-fetched summary/history so the orchestrator
// can call it without round-tripping back into the store, and so the
// original query handed to the cache and classifier is never this rewritten
// form.
func Enhance(summary *types.ConversationSummary, history []types.ConversationExchange, query string) string {
	var b strings.Builder
	if summary != nil && summary.Text != "" {
		b.WriteString(summary.Text)
		b.WriteString("\n")
	}

	preview := history
	if len(preview) > recentExchangesPreview {
		preview = preview[len(preview)-recentExchangesPreview:]
	}
	for _, exchange := range preview {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", exchange.Query, exchange.Answer)
	}

	b.WriteString(query)
	return b.String()
}
