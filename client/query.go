package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// QueryRequest is the POST /query request body.
type QueryRequest struct {
	Query           string `json:"query"`
	Mode            string `json:"mode,omitempty"`
	Stream          bool   `json:"stream,omitempty"`
	UseConversation *bool  `json:"use_conversation,omitempty"`
}

// Source is one grounded reference attached to an answer.
type Source struct {
	SourceFile     string  `json:"source_file"`
	Page           int     `json:"page,omitempty"`
	ChunkID        string  `json:"chunk_id"`
	RelevanceScore float32 `json:"relevance_score"`
}

// QueryResponse is the non-streaming response body.
type QueryResponse struct {
	Answer       string                 `json:"answer"`
	Sources      []Source               `json:"sources"`
	Confidence   float32                `json:"confidence"`
	QueryType    string                 `json:"query_type"`
	StrategyUsed string                 `json:"strategy_used"`
	CacheHit     bool                   `json:"cache_hit"`
	CacheStage   string                 `json:"cache_stage,omitempty"`
	TimingsMs    map[string]int64       `json:"timings_ms"`
	Explanation  map[string]interface{} `json:"explanation"`
}

// StreamEvent is one streaming event: a "token" event carries Text,
// the terminal "done" event carries the full QueryResponse fields inline.
type StreamEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
	QueryResponse
}

// Query calls POST /query without streaming.
func (c *Client) Query(ctx context.Context, sessionID string, req QueryRequest) (*QueryResponse, error) {
	req.Stream = false
	resp, err := c.doRequest(ctx, http.MethodPost, "/query", sessionID, req, nil)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	var out QueryResponse
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryStream calls POST /query with stream=true, invoking callback once
// per SSE event until the terminal "done" event or an error, scanning the
// response body line by line and accumulating "data:" frames.
func (c *Client) QueryStream(ctx context.Context, sessionID string, req QueryRequest, callback func(*StreamEvent) error) error {
	req.Stream = true
	resp, err := c.doRequest(ctx, http.MethodPost, "/query", sessionID, req, nil)
	if err != nil {
		return fmt.Errorf("query stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var dataBuffer string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if dataBuffer == "" {
				continue
			}
			var ev StreamEvent
			if err := json.Unmarshal([]byte(dataBuffer), &ev); err != nil {
				return fmt.Errorf("failed to parse SSE data: %w", err)
			}
			dataBuffer = ""
			if err := callback(&ev); err != nil {
				return err
			}
			if ev.Type == "done" || ev.Type == "error" {
				return nil
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataBuffer = strings.TrimPrefix(line, "data:")
			dataBuffer = strings.TrimSpace(dataBuffer)
		}
	}
	return scanner.Err()
}
