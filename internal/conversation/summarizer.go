package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/policyqa/core/internal/common"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
)

// TaskSummarize is the asynq task type for the cumulative summarization
// pass, registered the same way internal/cache registers its
// pruning sweep: RegisterHandlerFunc before InitAsyncq, then enqueued from
// Memory.Append.
const TaskSummarize = "conversation:summarize"

// maxSummaryWords enforces a 200-word ceiling as a backstop truncation
// guard in front of whatever the LLM actually returns.
const maxSummaryWords = 200

const defaultSummaryPrompt = "You maintain a running summary of a conversation for later context. " +
	"Combine the existing summary with the new exchanges below into a single updated summary, " +
	"in prose, no more than 200 words. Keep only information useful for answering future " +
	"questions in this conversation."

type summarizeTaskPayload struct {
	SessionID   string                        `json:"session_id"`
	Displaced   []types.ConversationExchange  `json:"displaced"`
	ThroughTurn int                           `json:"through_turn"`
}

// NewSummarizeTask builds the task asynq.Client enqueues, matching
// internal/cache.NewPruneTask's shape.
func NewSummarizeTask(sessionID string, displaced []types.ConversationExchange, throughTurn int) (*asynq.Task, error) {
	payload, err := json.Marshal(summarizeTaskPayload{SessionID: sessionID, Displaced: displaced, ThroughTurn: throughTurn})
	if err != nil {
		return nil, fmt.Errorf("marshal summarize payload: %w", err)
	}
	return asynq.NewTask(TaskSummarize, payload), nil
}

// enqueueSummarize builds and submits a summarization task on the
// "default" queue via the shared asynq client.
func (m *Memory) enqueueSummarize(ctx context.Context, sessionID string, displaced []types.ConversationExchange, throughTurn int) error {
	task, err := NewSummarizeTask(sessionID, displaced, throughTurn)
	if err != nil {
		return err
	}
	client := common.GetAsyncqClient()
	if client == nil {
		return fmt.Errorf("asynq client not initialized")
	}
	_, err = client.EnqueueContext(ctx, task, asynq.Queue("default"))
	return err
}

// RegisterSummarizeHandler wires the summarization pass into the
// asynq handler table, matching internal/cache.RegisterPruneHandler's
// registration idiom.
func RegisterSummarizeHandler(m *Memory, summaryPrompt string) {
	if summaryPrompt == "" {
		summaryPrompt = defaultSummaryPrompt
	}
	common.RegisterHandlerFunc(TaskSummarize, func(ctx context.Context, task *asynq.Task) error {
		var payload summarizeTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal summarize payload: %w", err)
		}
		return m.runSummarize(ctx, payload, summaryPrompt)
	})
}

func (m *Memory) runSummarize(ctx context.Context, payload summarizeTaskPayload, summaryPrompt string) error {
	if m.llm == nil {
		return nil
	}

	state, ok, err := m.store.Get(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var existing string
	if state.Summary != nil {
		existing = state.Summary.Text
	}

	prompt := buildSummaryPrompt(existing, payload.Displaced)
	text, err := m.llm.Complete(ctx, summaryPrompt, prompt)
	if err != nil {
		logger.Warnf(ctx, "conversation summarization failed for session %s: %v", payload.SessionID, err)
		return nil
	}

	state.Summary = &types.ConversationSummary{
		Text:        truncateWords(text, maxSummaryWords),
		ThroughTurn: payload.ThroughTurn,
		UpdatedAt:   payload.Displaced[len(payload.Displaced)-1].Timestamp,
	}
	return m.store.Save(ctx, payload.SessionID, state, m.sessionTTL)
}

func buildSummaryPrompt(existing string, displaced []types.ConversationExchange) string {
	var b strings.Builder
	if existing != "" {
		b.WriteString("Existing summary:\n")
		b.WriteString(existing)
		b.WriteString("\n\n")
	}
	b.WriteString("New exchanges:\n")
	for _, exchange := range displaced {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", exchange.Query, exchange.Answer)
	}
	return b.String()
}

// truncateWords enforces the ≤200-word backstop in case the LLM
// ignores the prompt's instruction.
func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ")
}
