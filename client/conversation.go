package client

import (
	"context"
	"fmt"
	"net/http"
)

// ConversationStats is the GET /conversation/stats response body.
type ConversationStats struct {
	SessionID      string `json:"session_id"`
	ExchangeCount  int    `json:"exchange_count"`
	HasSummary     bool   `json:"has_summary"`
	WindowSize     int    `json:"window_size"`
	LastActivityAt string `json:"last_activity_at"`
}

// ClearConversation calls POST /conversation/clear for sessionID.
func (c *Client) ClearConversation(ctx context.Context, sessionID string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/conversation/clear", sessionID, nil, nil)
	if err != nil {
		return fmt.Errorf("clear conversation request failed: %w", err)
	}
	return parseResponse(resp, nil)
}

// ConversationStatsFor calls GET /conversation/stats for sessionID.
func (c *Client) ConversationStatsFor(ctx context.Context, sessionID string) (*ConversationStats, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/conversation/stats", sessionID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("conversation stats request failed: %w", err)
	}
	var out ConversationStats
	if err := parseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
