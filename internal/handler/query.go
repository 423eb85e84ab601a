package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/policyqa/core/internal/errors"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/orchestrator"
	"github.com/policyqa/core/internal/types"
)

// QueryHandler exposes the one request/response and streaming pipeline
// entry point, collapsed to a single stateless operation: no
// session/message persistence, the orchestrator is the single source of
// conversational state.
type QueryHandler struct {
	orchestrator *orchestrator.Orchestrator
}

// NewQueryHandler builds a QueryHandler.
func NewQueryHandler(o *orchestrator.Orchestrator) *QueryHandler {
	return &QueryHandler{orchestrator: o}
}

// queryRequest is the POST /query request body.
type queryRequest struct {
	Query           string `json:"query" binding:"required"`
	Mode            string `json:"mode"`
	Stream          bool   `json:"stream"`
	UseConversation *bool  `json:"use_conversation"`
}

// sourceDTO is one entry of the response `sources` array.
type sourceDTO struct {
	SourceFile     string  `json:"source_file"`
	Page           int     `json:"page,omitempty"`
	ChunkID        string  `json:"chunk_id"`
	RelevanceScore float32 `json:"relevance_score"`
}

// queryResponse is the non-streaming response body.
type queryResponse struct {
	Answer       string               `json:"answer"`
	Sources      []sourceDTO          `json:"sources"`
	Confidence   float32              `json:"confidence"`
	QueryType    types.QueryType      `json:"query_type"`
	StrategyUsed types.Strategy       `json:"strategy_used"`
	CacheHit     bool                 `json:"cache_hit"`
	CacheStage   types.CacheStage     `json:"cache_stage,omitempty"`
	TimingsMs    map[types.EventType]int64 `json:"timings_ms"`
	Explanation  types.QueryExplanation    `json:"explanation"`
}

func toSourceDTOs(citations []types.SourceCitation) []sourceDTO {
	out := make([]sourceDTO, len(citations))
	for i, c := range citations {
		out[i] = sourceDTO{
			SourceFile:     c.DocumentID,
			Page:           c.Page,
			ChunkID:        c.ChunkID,
			RelevanceScore: c.Score,
		}
	}
	return out
}

func toQueryResponse(resp *orchestrator.Response) queryResponse {
	return queryResponse{
		Answer:       resp.Answer.Text,
		Sources:      toSourceDTOs(resp.Answer.Citations),
		Confidence:   resp.Answer.Confidence,
		QueryType:    resp.QueryType,
		StrategyUsed: resp.Strategy,
		CacheHit:     resp.CacheHit,
		CacheStage:   resp.CacheStage,
		TimingsMs:    resp.Explanation.TimingsMs,
		Explanation:  resp.Explanation,
	}
}

// sessionIDOrGenerate reads X-Session-ID, generating an anonymous session
// for a caller that omits it.
func sessionIDOrGenerate(c *gin.Context) string {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.New().String()
		c.Header("X-Session-ID", sessionID)
	}
	return sessionID
}

// Query handles POST /query, dispatching to the streaming or non-streaming
// path based on the request body's stream flag.
func (h *QueryHandler) Query(c *gin.Context) {
	ctx := logger.CloneContext(c.Request.Context())

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInput(err.Error()))
		return
	}
	if len(req.Query) > 10000 {
		c.Error(apperrors.NewInvalidInput("query must not exceed 10000 characters"))
		return
	}

	useConversation := true
	if req.UseConversation != nil {
		useConversation = *req.UseConversation
	}

	orchReq := orchestrator.Request{
		SessionID:       sessionIDOrGenerate(c),
		Text:            req.Query,
		Mode:            req.Mode,
		Stream:          req.Stream,
		UseConversation: useConversation,
	}

	if req.Stream {
		h.queryStream(c, orchReq)
		return
	}

	resp, err := h.orchestrator.Query(ctx, orchReq)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toQueryResponse(resp))
}

// queryStream renders the orchestrator's event channel as text/event-stream
// framing for a streaming response: one "token" event per chunk, followed
// by exactly one terminal "done" event carrying the full response.
func (h *QueryHandler) queryStream(c *gin.Context, req orchestrator.Request) {
	events, err := h.orchestrator.QueryStream(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		if ev.Err != "" {
			c.SSEvent("message", gin.H{"type": "error", "message": ev.Err})
			return false
		}
		if ev.Done {
			payload := gin.H{"type": "done"}
			if ev.Final != nil {
				full := toQueryResponse(ev.Final)
				payload["answer"] = full.Answer
				payload["sources"] = full.Sources
				payload["confidence"] = full.Confidence
				payload["query_type"] = full.QueryType
				payload["strategy_used"] = full.StrategyUsed
				payload["cache_hit"] = full.CacheHit
				payload["cache_stage"] = full.CacheStage
				payload["timings_ms"] = full.TimingsMs
				payload["explanation"] = full.Explanation
			}
			c.SSEvent("message", payload)
			return false
		}
		c.SSEvent("message", gin.H{"type": "token", "text": ev.Token})
		return true
	})
}
