package conversation

import (
	"strings"
	"testing"

	"github.com/policyqa/core/internal/types"
)

func TestEnhancePrependsSummaryAndHistory(t *testing.T) {
	summary := &types.ConversationSummary{Text: "The user is asking about a dental policy."}
	history := []types.ConversationExchange{
		exchange("what is covered", "fillings and cleanings"),
	}

	enhanced := Enhance(summary, history, "what about the deductible")

	if !strings.Contains(enhanced, summary.Text) {
		t.Errorf("expected summary text embedded, got %q", enhanced)
	}
	if !strings.Contains(enhanced, "fillings and cleanings") {
		t.Errorf("expected recent exchange embedded, got %q", enhanced)
	}
	if !strings.HasSuffix(enhanced, "what about the deductible") {
		t.Errorf("expected original query last, got %q", enhanced)
	}
}

func TestEnhanceWithNoSummaryOrHistory(t *testing.T) {
	enhanced := Enhance(nil, nil, "what is the deductible")
	if enhanced != "what is the deductible" {
		t.Errorf("expected bare original query, got %q", enhanced)
	}
}

func TestEnhanceCapsRecentExchangePreview(t *testing.T) {
	history := []types.ConversationExchange{
		exchange("q1", "a1"),
		exchange("q2", "a2"),
		exchange("q3", "a3"),
		exchange("q4", "a4"),
	}
	enhanced := Enhance(nil, history, "q5")
	if strings.Contains(enhanced, "q1") {
		t.Errorf("expected oldest exchange dropped from the preview, got %q", enhanced)
	}
	if !strings.Contains(enhanced, "q4") {
		t.Errorf("expected most recent exchange retained, got %q", enhanced)
	}
}
