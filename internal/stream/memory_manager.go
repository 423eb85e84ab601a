package stream

import (
	"context"
	"sync"
	"time"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

type memoryStreamInfo struct {
	sessionID   string
	requestID   string
	query       string
	content     string
	citations   []types.SourceCitation
	confidence  float32
	lastUpdated time.Time
	isCompleted bool
}

// MemoryStreamManager is the in-process StreamManager, used in single-instance
// deployments where reconnect always lands on the same process.
type MemoryStreamManager struct {
	activeStreams map[string]map[string]*memoryStreamInfo
	mu            sync.RWMutex
}

// NewMemoryStreamManager creates a new in-memory stream manager.
func NewMemoryStreamManager() *MemoryStreamManager {
	return &MemoryStreamManager{
		activeStreams: make(map[string]map[string]*memoryStreamInfo),
	}
}

// RegisterStream marks the start of a new streamed generation.
func (m *MemoryStreamManager) RegisterStream(ctx context.Context, sessionID, requestID, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &memoryStreamInfo{
		sessionID:   sessionID,
		requestID:   requestID,
		query:       query,
		lastUpdated: time.Now(),
	}

	if _, exists := m.activeStreams[sessionID]; !exists {
		m.activeStreams[sessionID] = make(map[string]*memoryStreamInfo)
	}
	m.activeStreams[sessionID][requestID] = info
	return nil
}

// UpdateStream appends a content delta and, when present, the citation set.
func (m *MemoryStreamManager) UpdateStream(ctx context.Context, sessionID, requestID string,
	contentDelta string, citations []types.SourceCitation,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionMap, exists := m.activeStreams[sessionID]; exists {
		if stream, found := sessionMap[requestID]; found {
			stream.content += contentDelta
			if len(citations) > 0 {
				stream.citations = citations
			}
			stream.lastUpdated = time.Now()
		}
	}
	return nil
}

// CompleteStream marks the stream done and schedules it for removal.
func (m *MemoryStreamManager) CompleteStream(ctx context.Context, sessionID, requestID string, confidence float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionMap, exists := m.activeStreams[sessionID]
	if !exists {
		return nil
	}
	stream, found := sessionMap[requestID]
	if !found {
		return nil
	}
	stream.isCompleted = true
	stream.confidence = confidence
	go func() {
		time.Sleep(30 * time.Second)
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(sessionMap, requestID)
		if len(sessionMap) == 0 {
			delete(m.activeStreams, sessionID)
		}
	}()
	return nil
}

// GetStream retrieves the in-memory state of one stream.
func (m *MemoryStreamManager) GetStream(ctx context.Context, sessionID, requestID string) (*interfaces.StreamInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessionMap, exists := m.activeStreams[sessionID]
	if !exists {
		return nil, nil
	}
	stream, found := sessionMap[requestID]
	if !found {
		return nil, nil
	}
	return &interfaces.StreamInfo{
		SessionID:   stream.sessionID,
		RequestID:   stream.requestID,
		Query:       stream.query,
		Content:     stream.content,
		Citations:   stream.citations,
		Confidence:  stream.confidence,
		LastUpdated: stream.lastUpdated,
		IsCompleted: stream.isCompleted,
	}, nil
}

var _ interfaces.StreamManager = (*MemoryStreamManager)(nil)
