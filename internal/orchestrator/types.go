package orchestrator

import (
	"sync"
	"time"

	"github.com/policyqa/core/internal/types"
)

// Request is one inbound question.
type Request struct {
	SessionID       string
	Text            string
	Mode            string // "", "adaptive" (classifier-chosen) or "simple" (force StrategySimple)
	Stream          bool
	UseConversation bool
}

// Response is the complete, non-streamed result of a query.
type Response struct {
	Answer      types.Answer
	QueryType   types.QueryType
	Strategy    types.Strategy
	CacheHit    bool
	CacheStage  types.CacheStage
	Explanation types.QueryExplanation
}

// StreamEvent is one unit pushed down QueryStream's channel. Final carries
// the full Response, set only alongside Done, so a streaming caller never
// needs a second round-trip to learn what was answered.
type StreamEvent struct {
	Token string
	Done  bool
	Err   string
	Final *Response
}

// timingSink accumulates per-stage durations from possibly-concurrent
// goroutines (classify and the followup check run side by side).
type timingSink struct {
	mu sync.Mutex
	m  map[types.EventType]int64
}

func newTimingSink() *timingSink {
	return &timingSink{m: map[types.EventType]int64{}}
}

func (t *timingSink) record(ev types.EventType, since time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[ev] += time.Since(since).Milliseconds()
}

func (t *timingSink) snapshot() map[types.EventType]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[types.EventType]int64, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}
