package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
)

// QueryStream runs the same state machine as Query, but streams generation
// tokens as they are produced. Admission gates
// embedding through retrieval only; once generation begins the request no
// longer holds a pipeline slot; the resumable stream manager registration
// (StreamManager) is what bounds a slow client's server-side footprint
// instead.
func (o *Orchestrator) QueryStream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.NewInvalidInput("query text must not be empty").WithStage("received")
	}
	ctx, cancel := context.WithTimeout(ctx, o.globalDeadline)

	out := make(chan StreamEvent)
	timings := newTimingSink()
	q := o.normalize(req, timings)

	if resp, ok := o.checkCache(ctx, q, nil, timings); ok {
		go func() {
			defer cancel()
			defer close(out)
			out <- StreamEvent{Token: resp.Answer.Text, Done: true, Final: resp}
		}()
		return out, nil
	}

	var (
		result  types.RetrievalResult
		prepErr error

		queryType   types.QueryType
		explanation types.QueryExplanation
		isFollowup  bool
		history     []types.ConversationExchange
		summary     *types.ConversationSummary
		embedding   []float32

		cachedResp *Response
	)

	admitErr := o.admission.run(func() {
		embedding, prepErr = o.embed(ctx, q.Text, timings)
		if prepErr != nil {
			return
		}

		queryType, explanation, isFollowup, history, summary = o.classifyAndCheckFollowup(ctx, req, q, timings)
		applyModeOverride(req.Mode, &queryType, &explanation)
		explanation.IsFollowup = isFollowup

		if resp, ok := o.checkCache(ctx, q, embedding, timings); ok {
			resp.QueryType = queryType
			resp.Explanation.Strategy = explanation.Strategy
			cachedResp = resp
			return
		}

		result, prepErr = o.retrieve(ctx, req, q, embedding, explanation.Strategy, isFollowup, history, summary, timings)
	})
	if admitErr != nil {
		cancel()
		return nil, admitErr
	}
	if prepErr != nil {
		cancel()
		return nil, prepErr
	}
	if cachedResp != nil {
		go func() {
			defer cancel()
			defer close(out)
			out <- StreamEvent{Token: cachedResp.Answer.Text, Done: true, Final: cachedResp}
		}()
		return out, nil
	}
	if result.Degraded {
		explanation.DegradedDeps = append(explanation.DegradedDeps, result.DegradeReason)
	}

	requestID := uuid.New().String()
	if err := o.streams.RegisterStream(ctx, req.SessionID, requestID, q.Text); err != nil {
		logger.Warnf(ctx, "stream: register failed, continuing without resumability: %v", err)
	}

	tGenerate := time.Now()
	upstream, err := o.generator.GenerateStream(ctx, q, result, history, summary)
	if err != nil {
		cancel()
		return nil, err
	}

	go o.forwardStream(ctx, cancel, req, q, embedding, queryType, explanation, requestID, tGenerate, timings, upstream, out)
	return out, nil
}

// forwardStream relays generator tokens to the caller's channel, persists
// stream progress via StreamManager, and on the terminal chunk performs
// the same CACHE_PUT/conversation-append side effects as Query - unless
// ctx was cancelled first, in which case neither runs.
func (o *Orchestrator) forwardStream(
	ctx context.Context, cancel context.CancelFunc, req Request, q types.Query, embedding []float32,
	queryType types.QueryType, explanation types.QueryExplanation, requestID string,
	tGenerate time.Time, timings *timingSink, upstream <-chan types.StreamChunk, out chan<- StreamEvent,
) {
	defer cancel()
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
			if err := o.streams.UpdateStream(ctx, req.SessionID, requestID, chunk.Token, nil); err != nil {
				logger.Warnf(ctx, "stream: update failed for %s: %v", requestID, err)
			}
			out <- StreamEvent{Token: chunk.Token}
			continue
		}

		if chunk.Done {
			timings.record(types.EventGenerate, tGenerate)
			timings.record(types.EventConfidence, time.Now())

			answer := types.Answer{
				Text:       full.String(),
				Citations:  chunk.Citations,
				Confidence: chunk.Confidence,
			}
			if err := o.streams.CompleteStream(ctx, req.SessionID, requestID, chunk.Confidence); err != nil {
				logger.Warnf(ctx, "stream: complete failed for %s: %v", requestID, err)
			}

			o.finishSuccess(ctx, req, q, embedding, answer, timings)
			explanation.TimingsMs = timings.snapshot()
			o.recordAnalytics(q, answer, explanation)

			out <- StreamEvent{
				Done: true,
				Final: &Response{
					Answer:      answer,
					QueryType:   queryType,
					Strategy:    explanation.Strategy,
					Explanation: explanation,
				},
			}
			return
		}
	}
}
