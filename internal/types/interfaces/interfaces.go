// Package interfaces defines the abstract ports every concrete adapter
// (models, cache, retrieval, conversation) implements, so the orchestrator
// and container wire concrete types behind small, mockable contracts.
package interfaces

import (
	"context"
	"time"

	"github.com/policyqa/core/internal/types"
)

// EmbeddingClient produces unit-norm dense vectors for text.
type EmbeddingClient interface {
	// Embed returns one L2-normalized vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// LLMClient is the chat-completion port used for generation, query-variant
// expansion (advanced strategy), LLM reranking, and conversation
// summarization.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan types.StreamChunk, error)
}

// CrossEncoder scores (query, chunk) pairs in a single GPU-batched call,
// stage one of the two-stage reranker.
type CrossEncoder interface {
	Score(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error)
}

// NeuralReranker is the preferred stage-two reranker, a BGE-style
// cross-attention reranker served as its own batched model.
type NeuralReranker interface {
	Rerank(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error)
	// Available reports whether the neural reranker is reachable; when
	// false the rerank stage falls back to the LLM reranker.
	Available(ctx context.Context) bool
}

// VectorStore is the dense retrieval backend.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievedDocument, error)
}

// SparseIndex is the lexical/BM25 retrieval backend.
type SparseIndex interface {
	Search(ctx context.Context, query string, topK int) ([]types.RetrievedDocument, error)
	Available(ctx context.Context) bool
}

// Cache is the multi-stage semantic cache.
type Cache interface {
	Get(ctx context.Context, q types.Query, embedding []float32) (*types.Answer, types.CacheStage, bool)
	Put(ctx context.Context, q types.Query, embedding []float32, answer types.Answer) error
}

// ConversationMemory tracks per-session sliding-window history and
// cumulative summaries.
type ConversationMemory interface {
	Append(ctx context.Context, sessionID string, exchange types.ConversationExchange) error
	History(ctx context.Context, sessionID string) ([]types.ConversationExchange, *types.ConversationSummary, error)
	IsFollowup(ctx context.Context, sessionID string, query string) (bool, error)
	Clear(ctx context.Context, sessionID string) error
	Stats(ctx context.Context, sessionID string) (types.ConversationStats, error)
}

// RetrievalEngine dispatches a query to the strategy selected by the
// classifier and returns a fused, reranked result set.
type RetrievalEngine interface {
	Retrieve(ctx context.Context, q types.Query, strategy types.Strategy, embedding []float32) (types.RetrievalResult, error)
}

// AnswerGenerator produces a grounded answer from retrieved context.
type AnswerGenerator interface {
	Generate(ctx context.Context, q types.Query, result types.RetrievalResult, history []types.ConversationExchange, summary *types.ConversationSummary) (types.Answer, error)
	GenerateStream(ctx context.Context, q types.Query, result types.RetrievalResult, history []types.ConversationExchange, summary *types.ConversationSummary) (<-chan types.StreamChunk, error)
}

// StreamInfo is the resumable state of one in-flight or recently completed
// streamed generation, keyed by session+request so a
// client that drops its SSE connection can reconnect and replay from
// StreamInfo.Content instead of re-querying the LLM.
type StreamInfo struct {
	SessionID   string                  `json:"session_id"`
	RequestID   string                  `json:"request_id"`
	Query       string                  `json:"query"`
	Content     string                  `json:"content"`
	Citations   []types.SourceCitation  `json:"citations"`
	Confidence  float32                 `json:"confidence"`
	LastUpdated time.Time               `json:"last_updated"`
	IsCompleted bool                    `json:"is_completed"`
}

// StreamManager persists streamed-generation progress so a dropped SSE
// connection can be resumed.
type StreamManager interface {
	RegisterStream(ctx context.Context, sessionID, requestID, query string) error
	UpdateStream(ctx context.Context, sessionID, requestID, contentDelta string, citations []types.SourceCitation) error
	CompleteStream(ctx context.Context, sessionID, requestID string, confidence float32) error
	GetStream(ctx context.Context, sessionID, requestID string) (*StreamInfo, error)
}

// AnalyticsSink records query/answer pairs for offline analysis only;
// failures here must never affect the response path.
type AnalyticsSink interface {
	Record(ctx context.Context, q types.Query, a types.Answer, explanation types.QueryExplanation) error
}

// ResourceCleaner collects teardown steps for every long-lived resource
// the container wires (goroutine pools, the analytics sink, the
// orchestrator's admission pool) and runs them in reverse registration
// order on shutdown.
type ResourceCleaner interface {
	Register(cleanup types.CleanupFunc)
	RegisterWithName(name string, cleanup types.CleanupFunc)
	Cleanup(ctx context.Context) []error
}
