package chat

import (
	"context"
	"time"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// Client adapts a Chat backend into the abstract interfaces.LLMClient port.
// Complete applies the generation failure-semantics retry schedule (90s
// timeout per attempt, one attempt plus up to 3 retries, 1s/2s/4s backoff)
// to every non-streamed caller: generation, query-variant expansion, LLM
// reranking, and conversation summarization. CompleteStream makes a single
// attempt under the same timeout and does not retry.
type Client struct {
	chat           Chat
	timeout        time.Duration
	retryAttempts  int
	backoffBaseMs  int
}

// NewClient wraps a Chat backend as an interfaces.LLMClient.
func NewClient(chat Chat, timeout time.Duration, retryAttempts, backoffBaseMs int) *Client {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	if retryAttempts == 0 {
		retryAttempts = 3
	}
	if backoffBaseMs == 0 {
		backoffBaseMs = 1000
	}
	return &Client{chat: chat, timeout: timeout, retryAttempts: retryAttempts, backoffBaseMs: backoffBaseMs}
}

// Complete performs one non-streamed chat completion with retries.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(c.backoffBaseMs) * time.Millisecond * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			logger.Warnf(ctx, "retrying chat completion (attempt %d/%d) after: %v", attempt, c.retryAttempts, lastErr)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.chat.Chat(callCtx, messages, &ChatOptions{Temperature: 0.2})
		cancel()
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// CompleteStream performs one streamed chat completion, translating the
// model-layer ChatStreamResponse events into types.StreamChunk.
func (c *Client) CompleteStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan types.StreamChunk, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	upstream, err := c.chat.ChatStream(callCtx, messages, &ChatOptions{Temperature: 0.2})
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan types.StreamChunk)
	go func() {
		defer cancel()
		defer close(out)
		for chunk := range upstream {
			if chunk.Content != "" {
				out <- types.StreamChunk{Token: chunk.Content}
			}
			if chunk.Done {
				out <- types.StreamChunk{Done: true}
				return
			}
		}
	}()
	return out, nil
}

var _ interfaces.LLMClient = (*Client)(nil)
