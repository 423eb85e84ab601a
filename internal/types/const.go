package types

// CleanupFunc is one resource-teardown step registered with a
// ResourceCleaner (e.g. releasing a goroutine pool, flushing an analytics
// sink).
type CleanupFunc func() error

// ContextKey defines a type for context keys to avoid string collisions.
type ContextKey string

const (
	// RequestIDContextKey is the context key for the per-request id.
	RequestIDContextKey ContextKey = "RequestID"
	// SessionIDContextKey is the context key for the conversation session id.
	SessionIDContextKey ContextKey = "SessionID"
	// LoggerContextKey is the context key for the scoped logger.
	LoggerContextKey ContextKey = "Logger"
)

// String returns the string representation of the context key.
func (c ContextKey) String() string {
	return string(c)
}

// QueryType is the output of the query classifier.
type QueryType string

const (
	QueryTypeSimple   QueryType = "simple"
	QueryTypeModerate QueryType = "moderate"
	QueryTypeComplex  QueryType = "complex"
)

// Strategy is the retrieval strategy dispatched to for a given QueryType.
type Strategy string

const (
	StrategySimple   Strategy = "simple"
	StrategyHybrid   Strategy = "hybrid"
	StrategyAdvanced Strategy = "advanced"
)

// CacheStage identifies which of the three cache stages served a hit.
type CacheStage string

const (
	CacheStageExact      CacheStage = "exact"
	CacheStageNormalized CacheStage = "normalized"
	CacheStageSemantic   CacheStage = "semantic"
)

// EventType names a stage of the per-query pipeline. The orchestrator's
// state machine and the retrieval dispatcher both emit EventType-keyed timings.
type EventType string

const (
	EventNormalize       EventType = "normalize"
	EventCacheLookup     EventType = "cache_lookup"
	EventEmbedding       EventType = "embedding"
	EventClassify        EventType = "classify"
	EventFollowupCheck   EventType = "followup_check"
	EventRetrieveDense   EventType = "retrieve_dense"
	EventRetrieveSparse  EventType = "retrieve_sparse"
	EventFuse            EventType = "fuse"
	EventRerank          EventType = "rerank"
	EventGenerate        EventType = "generate"
	EventConfidence      EventType = "confidence"
	EventCachePut        EventType = "cache_put"
)

// StrategyPipeline names the ordered stages each retrieval strategy runs,
// keyed by the strategy the classifier selects rather than one the caller
// supplies directly.
var StrategyPipeline = map[Strategy][]EventType{
	StrategySimple: {
		EventRetrieveDense,
	},
	StrategyHybrid: {
		EventRetrieveDense,
		EventRetrieveSparse,
		EventFuse,
		EventRerank,
	},
	StrategyAdvanced: {
		EventRetrieveDense,
		EventRetrieveSparse,
		EventFuse,
		EventRerank,
	},
}
