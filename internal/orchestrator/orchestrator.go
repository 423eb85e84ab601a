// Package orchestrator drives one query through the full pipeline:
// normalize, cache lookup, classify, retrieve, generate, confidence, cache
// put. It runs as a single state-machine function rather than an
// event-manager/plugin chain: there is exactly one pipeline shape here, so
// a plugin registry buys nothing a plain function call chain doesn't
// already give.
package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/policyqa/core/internal/cache/normalize"
	"github.com/policyqa/core/internal/classifier"
	"github.com/policyqa/core/internal/conversation"
	apperrors "github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// Orchestrator wires every pipeline component behind the state machine in
// Query/QueryStream. All fields are required except analytics, which is
// nil-safe.
type Orchestrator struct {
	embedder     interfaces.EmbeddingClient
	cache        interfaces.Cache
	thresholds   classifier.Thresholds
	retrieval    interfaces.RetrievalEngine
	conversation interfaces.ConversationMemory
	generator    interfaces.AnswerGenerator
	streams      interfaces.StreamManager
	analytics    interfaces.AnalyticsSink

	admission      *admission
	globalDeadline time.Duration
}

// New builds an Orchestrator. maxInflight and globalDeadline come directly
// from config.ServerConfig.
func New(
	embedder interfaces.EmbeddingClient,
	cache interfaces.Cache,
	thresholds classifier.Thresholds,
	retrieval interfaces.RetrievalEngine,
	conversation interfaces.ConversationMemory,
	generator interfaces.AnswerGenerator,
	streams interfaces.StreamManager,
	analytics interfaces.AnalyticsSink,
	maxInflight int,
	globalDeadline time.Duration,
) (*Orchestrator, error) {
	adm, err := newAdmission(maxInflight)
	if err != nil {
		return nil, err
	}
	if globalDeadline <= 0 {
		globalDeadline = 120 * time.Second
	}
	return &Orchestrator{
		embedder:       embedder,
		cache:          cache,
		thresholds:     thresholds,
		retrieval:      retrieval,
		conversation:   conversation,
		generator:      generator,
		streams:        streams,
		analytics:      analytics,
		admission:      adm,
		globalDeadline: globalDeadline,
	}, nil
}

// Close releases the admission pool.
func (o *Orchestrator) Close() {
	o.admission.release()
}

// Query runs the non-streaming path of the state machine:
// RECEIVED -> NORMALIZED -> CACHE_LOOKUP -> (hit A/B -> DONE) | miss ->
// EMBEDDING -> CLASSIFY+FOLLOWUP_CHECK -> CACHE_LOOKUP_C -> (hit C -> DONE)
// | miss -> RETRIEVE -> RERANK -> GENERATE -> CONFIDENCE -> CACHE_PUT -> DONE.
func (o *Orchestrator) Query(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperrors.NewInvalidInput("query text must not be empty").WithStage("received")
	}

	ctx, cancel := context.WithTimeout(ctx, o.globalDeadline)
	defer cancel()

	timings := newTimingSink()
	q := o.normalize(req, timings)

	if resp, ok := o.checkCache(ctx, q, nil, timings); ok {
		return resp, nil
	}

	var (
		resp *Response
		err  error
	)
	admitErr := o.admission.run(func() {
		resp, err = o.runFullPipeline(ctx, req, q, timings)
	})
	if admitErr != nil {
		return nil, admitErr
	}
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return nil, apperrors.NewTimeoutGlobal("query exceeded the global deadline").WithCause(err)
	}
	return resp, err
}

// runFullPipeline is everything gated by admission control: embedding
// through cache put. Stage A/B cache hits never reach here; the Stage C
// lookup runs here, after embedding.
func (o *Orchestrator) runFullPipeline(ctx context.Context, req Request, q types.Query, timings *timingSink) (*Response, error) {
	embedding, err := o.embed(ctx, q.Text, timings)
	if err != nil {
		return nil, err
	}

	queryType, explanation, isFollowup, history, summary := o.classifyAndCheckFollowup(ctx, req, q, timings)
	applyModeOverride(req.Mode, &queryType, &explanation)
	explanation.IsFollowup = isFollowup

	if resp, ok := o.checkCache(ctx, q, embedding, timings); ok {
		resp.QueryType = queryType
		resp.Explanation.QueryType = queryType
		resp.Explanation.Strategy = explanation.Strategy
		resp.Explanation.IsFollowup = isFollowup
		return resp, nil
	}

	result, err := o.retrieve(ctx, req, q, embedding, explanation.Strategy, isFollowup, history, summary, timings)
	if err != nil {
		return nil, err
	}
	if result.Degraded {
		explanation.DegradedDeps = append(explanation.DegradedDeps, result.DegradeReason)
	}

	t := time.Now()
	answer, err := o.generator.Generate(ctx, q, result, history, summary)
	timings.record(types.EventGenerate, t)
	if err != nil {
		return nil, err
	}
	timings.record(types.EventConfidence, time.Now())

	o.finishSuccess(ctx, req, q, embedding, answer, timings)

	explanation.TimingsMs = timings.snapshot()
	o.recordAnalytics(q, answer, explanation)
	return &Response{
		Answer:      answer,
		QueryType:   queryType,
		Strategy:    result.Strategy,
		Explanation: explanation,
	}, nil
}

// normalize fills in NormalizedText eagerly so NORMALIZED is a real,
// timed stage rather than an implicit side effect of the cache's own
// internal normalization.
func (o *Orchestrator) normalize(req Request, timings *timingSink) types.Query {
	t := time.Now()
	q := types.Query{
		SessionID:  req.SessionID,
		Text:       req.Text,
		ReceivedAt: time.Now(),
	}
	q.NormalizedText = normalize.Normalize(q.Text)
	timings.record(types.EventNormalize, t)
	return q
}

// checkCache runs one cache.Get call (embedding nil only checks stages A/B;
// a non-nil embedding additionally checks stage C) and, on a hit, builds
// the terminal Response.
func (o *Orchestrator) checkCache(ctx context.Context, q types.Query, embedding []float32, timings *timingSink) (*Response, bool) {
	t := time.Now()
	answer, stage, ok := o.cache.Get(ctx, q, embedding)
	timings.record(types.EventCacheLookup, t)
	if !ok {
		return nil, false
	}
	answer.FromCache = true
	answer.CacheStage = stage
	explanation := types.QueryExplanation{
		CacheStage: stage,
		TimingsMs:  timings.snapshot(),
	}
	o.recordAnalytics(q, *answer, explanation)
	return &Response{
		Answer:      *answer,
		CacheHit:    true,
		CacheStage:  stage,
		Explanation: explanation,
	}, true
}

// recordAnalytics fires the query/answer pair at the analytics sink in the
// background; its failures never touch the response path.
func (o *Orchestrator) recordAnalytics(q types.Query, answer types.Answer, explanation types.QueryExplanation) {
	if o.analytics == nil {
		return
	}
	go func() {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.analytics.Record(recCtx, q, answer, explanation); err != nil {
			logger.Warnf(recCtx, "analytics: record failed: %v", err)
		}
	}()
}

// embed produces the query's single canonical embedding.
func (o *Orchestrator) embed(ctx context.Context, text string, timings *timingSink) ([]float32, error) {
	t := time.Now()
	vecs, err := o.embedder.Embed(ctx, []string{text})
	timings.record(types.EventEmbedding, t)
	if err != nil {
		return nil, apperrors.NewDependencyUnavailable("embedding client unavailable").WithCause(err).WithStage("embedding")
	}
	if len(vecs) == 0 {
		return nil, apperrors.NewInternal("embedding client returned no vectors").WithStage("embedding")
	}
	return vecs[0], nil
}

// classifyAndCheckFollowup runs classification and the followup check
// concurrently. Classification always runs against the
// original query text, never an enhanced one.
func (o *Orchestrator) classifyAndCheckFollowup(ctx context.Context, req Request, q types.Query, timings *timingSink,
) (types.QueryType, types.QueryExplanation, bool, []types.ConversationExchange, *types.ConversationSummary) {
	var (
		queryType   types.QueryType
		explanation types.QueryExplanation
		isFollowup  bool
		history     []types.ConversationExchange
		summary     *types.ConversationSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := time.Now()
		queryType, explanation = classifier.Classify(q.Text, o.thresholds)
		timings.record(types.EventClassify, t)
		return nil
	})
	g.Go(func() error {
		if !req.UseConversation {
			return nil
		}
		t := time.Now()
		var err error
		history, summary, err = o.conversation.History(gctx, req.SessionID)
		if err != nil {
			logger.Warnf(gctx, "conversation: history lookup failed, treating session as empty: %v", err)
			history, summary = nil, nil
		}
		isFollowup, err = o.conversation.IsFollowup(gctx, req.SessionID, q.Text)
		timings.record(types.EventFollowupCheck, t)
		if err != nil {
			logger.Warnf(gctx, "conversation: followup check failed, treating as not a followup: %v", err)
			isFollowup = false
		}
		return nil
	})
	_ = g.Wait() // both legs swallow their own errors; Wait never returns non-nil here

	return queryType, explanation, isFollowup, history, summary
}

func applyModeOverride(mode string, queryType *types.QueryType, explanation *types.QueryExplanation) {
	if mode != "simple" {
		return
	}
	*queryType = types.QueryTypeSimple
	explanation.QueryType = types.QueryTypeSimple
	explanation.Strategy = types.StrategySimple
}

// retrieve runs RETRIEVE+RERANK. On a followup turn the retrieval-phase
// query text is rewritten with conversation context and re-embedded - a second, distinct embedding call, which
// does not violate the "embed at most once per text" invariant since it is
// a different text. Prior-turn sources are folded into the candidate pool
// so a short followup ("and the dental plan?") can still answer from a
// chunk the previous turn already surfaced.
func (o *Orchestrator) retrieve(
	ctx context.Context, req Request, q types.Query, embedding []float32, strategy types.Strategy,
	isFollowup bool, history []types.ConversationExchange, summary *types.ConversationSummary, timings *timingSink,
) (types.RetrievalResult, error) {
	retrievalQuery := q
	retrievalEmbedding := embedding

	if isFollowup && req.UseConversation && len(history) > 0 {
		enhancedText := conversation.Enhance(summary, history, q.Text)
		retrievalQuery = types.Query{SessionID: q.SessionID, Text: enhancedText, ReceivedAt: q.ReceivedAt}
		vecs, err := o.embedder.Embed(ctx, []string{enhancedText})
		if err == nil && len(vecs) > 0 {
			retrievalEmbedding = vecs[0]
		} else if err != nil {
			logger.Warnf(ctx, "retrieval: re-embedding enhanced query failed, falling back to original embedding: %v", err)
		}
	}

	t := time.Now()
	result, err := o.retrieval.Retrieve(ctx, retrievalQuery, strategy, retrievalEmbedding)
	// The engine does not expose its own per-stage (dense/sparse/fuse/rerank)
	// breakdown, so the whole call is booked against dense retrieval - the
	// one stage every strategy always runs.
	timings.record(types.EventRetrieveDense, t)
	if err != nil {
		return types.RetrievalResult{}, err
	}

	if isFollowup && req.UseConversation && len(history) > 0 {
		prior := history[len(history)-1].Citations
		result.Documents = mergeFollowupDocuments(result.Documents, prior, len(result.Documents))
	}

	return result, nil
}

// finishSuccess appends the exchange to conversation memory and writes the
// answer into the cache. Both only happen after a fully successful DONE.
func (o *Orchestrator) finishSuccess(
	ctx context.Context, req Request, q types.Query, embedding []float32, answer types.Answer, timings *timingSink,
) {
	t := time.Now()
	if err := o.cache.Put(ctx, q, embedding, answer); err != nil {
		logger.Warnf(ctx, "cache: put failed, answer will not be served from cache next time: %v", err)
	}
	timings.record(types.EventCachePut, t)

	if !req.UseConversation {
		return
	}
	exchange := types.ConversationExchange{
		Query:     q.Text,
		Answer:    answer.Text,
		Citations: answer.Citations,
		Timestamp: time.Now(),
	}
	if err := o.conversation.Append(ctx, req.SessionID, exchange); err != nil {
		logger.Warnf(ctx, "conversation: append failed for session %s: %v", req.SessionID, err)
	}
}

// mergeFollowupDocuments folds prior-turn citations into the current
// retrieval result as additional candidates, deduped by chunk ID and
// capped to the size of the current result so a followup never surfaces
// more sources than a fresh query would. An empty current result gives a
// limit of 0, and the prior citations are then returned uncapped.
func mergeFollowupDocuments(current []types.RetrievedDocument, prior []types.SourceCitation, limit int) []types.RetrievedDocument {
	if len(prior) == 0 {
		return current
	}
	seen := make(map[string]struct{}, len(current))
	for _, d := range current {
		seen[d.Chunk.ID] = struct{}{}
	}

	merged := make([]types.RetrievedDocument, len(current))
	copy(merged, current)
	for _, c := range prior {
		if _, ok := seen[c.ChunkID]; ok {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		merged = append(merged, types.RetrievedDocument{
			Chunk: types.Chunk{
				ID:         c.ChunkID,
				DocumentID: c.DocumentID,
				Section:    c.Section,
				Page:       c.Page,
				Text:       c.Snippet,
			},
			FinalScore: c.Score,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].FinalScore > merged[j].FinalScore })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}
