package types

import "time"

// Query is a single user question entering the pipeline.
type Query struct {
	SessionID      string    `json:"session_id"`
	Text           string    `json:"text"`
	NormalizedText string    `json:"normalized_text,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Chunk is a unit of retrievable policy-document text. Ingestion that
// produces chunks is out of scope; chunks are read from the vector/sparse
// stores as already-indexed rows.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Section    string            `json:"section,omitempty"`
	Page       int               `json:"page,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrievedDocument is a Chunk annotated with the per-stage scores it
// accumulated while passing through a retrieval strategy.
type RetrievedDocument struct {
	Chunk          Chunk   `json:"chunk"`
	DenseScore     float32 `json:"dense_score,omitempty"`
	SparseScore    float32 `json:"sparse_score,omitempty"`
	FusedScore     float32 `json:"fused_score,omitempty"`
	CrossScore     float32 `json:"cross_score,omitempty"`
	RerankScore    float32 `json:"rerank_score,omitempty"`
	FinalScore     float32 `json:"final_score"`
	Rank           int     `json:"rank"`
}

// RetrievalResult is the output of a retrieval strategy: the ranked
// documents plus enough bookkeeping for the confidence scorer and the
// cache's semantic-match validation.
type RetrievalResult struct {
	Strategy      Strategy            `json:"strategy"`
	Documents     []RetrievedDocument `json:"documents"`
	QueryVariants []string            `json:"query_variants,omitempty"`
	Degraded      bool                `json:"degraded"`
	DegradeReason string              `json:"degrade_reason,omitempty"`
}

// SourceCitation is a single grounded reference attached to a generated
// answer.
type SourceCitation struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Section    string  `json:"section,omitempty"`
	Page       int     `json:"page,omitempty"`
	Snippet    string  `json:"snippet"`
	Score      float32 `json:"score"`
}

// Answer is a fully generated, grounded response.
type Answer struct {
	Text            string           `json:"text"`
	Citations       []SourceCitation `json:"citations"`
	Confidence      float32          `json:"confidence"`
	RetrievalScore  float32          `json:"retrieval_score"`
	GroundingScore  float32          `json:"grounding_score"`
	FromCache       bool             `json:"from_cache"`
	CacheStage      CacheStage       `json:"cache_stage,omitempty"`
}

// CacheEntry is a stored query->answer mapping plus the data needed to
// validate a semantic match on future lookups.
type CacheEntry struct {
	Key            string    `json:"key"`
	NormalizedText string    `json:"normalized_text"`
	Embedding      []float32 `json:"embedding"`
	TermSet        []string  `json:"term_set"`
	Answer         Answer    `json:"answer"`
	CreatedAt      time.Time `json:"created_at"`
	HitCount       int64     `json:"hit_count"`
}

// ConversationExchange is one query/answer pair retained in the sliding
// window.
type ConversationExchange struct {
	Query     string           `json:"query"`
	Answer    string           `json:"answer"`
	Citations []SourceCitation `json:"citations,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ConversationSummary is the cumulative LLM-produced digest of exchanges
// that have aged out of the sliding window.
type ConversationSummary struct {
	Text        string    `json:"text"`
	ThroughTurn int       `json:"through_turn"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConversationStats is returned by GET /conversation/stats.
type ConversationStats struct {
	SessionID      string    `json:"session_id"`
	ExchangeCount  int       `json:"exchange_count"`
	HasSummary     bool      `json:"has_summary"`
	WindowSize     int       `json:"window_size"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// QueryExplanation carries the per-stage diagnostics returned alongside an
// answer when the caller asks for them, and is also what
// the orchestrator logs for every query regardless of the caller's wishes.
type QueryExplanation struct {
	QueryType    QueryType            `json:"query_type"`
	Strategy     Strategy             `json:"strategy"`
	IsFollowup   bool                 `json:"is_followup"`
	CacheStage   CacheStage           `json:"cache_stage,omitempty"`
	TimingsMs    map[EventType]int64  `json:"timings_ms"`
	DegradedDeps []string             `json:"degraded_deps,omitempty"`
}

// StreamChunk is one unit pushed down the token stream during answer
// generation. The final chunk of a stream sets
// Done and carries the citations and confidence computed for the
// now-complete answer, so a client never needs a second round-trip to
// learn what it was shown.
type StreamChunk struct {
	Token      string           `json:"token,omitempty"`
	Done       bool             `json:"done"`
	Err        string           `json:"error,omitempty"`
	Citations  []SourceCitation `json:"citations,omitempty"`
	Confidence float32          `json:"confidence,omitempty"`
}
