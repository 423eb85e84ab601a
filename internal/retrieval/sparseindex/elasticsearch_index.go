// Package sparseindex implements the lexical/BM25 retrieval backend (C4):
// an Elasticsearch-backed index plus an in-process BM25 fallback used when
// Elasticsearch reports unavailable.
package sparseindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	estypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// ElasticsearchIndex is the Elasticsearch-backed SparseIndex: a single
// `match` query against the content field, no BM25 tuning beyond ES
// defaults.
type ElasticsearchIndex struct {
	client *elasticsearch.TypedClient
	index  string
}

// NewElasticsearchIndex wraps an existing typed ES client.
func NewElasticsearchIndex(client *elasticsearch.TypedClient, index string) *ElasticsearchIndex {
	if index == "" {
		index = "chunks"
	}
	return &ElasticsearchIndex{client: client, index: index}
}

// Search runs a `match` query over the content field and returns hits
// ranked by Elasticsearch's BM25 score, normalized to the RetrievedDocument
// shape.
func (e *ElasticsearchIndex) Search(ctx context.Context, query string, topK int) ([]types.RetrievedDocument, error) {
	size := topK
	response, err := e.client.Search().Index(e.index).Request(&search.Request{
		Query: &estypes.Query{
			Match: map[string]estypes.MatchQuery{"content": {Query: query}},
		},
		Size: &size,
	}).Do(ctx)
	if err != nil {
		logger.Errorf(ctx, "sparseindex: elasticsearch search failed: %v", err)
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}

	docs := make([]types.RetrievedDocument, 0, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		var row esChunkSource
		if err := json.Unmarshal(hit.Source_, &row); err != nil {
			logger.Warnf(ctx, "sparseindex: failed to unmarshal hit: %v", err)
			continue
		}
		score := float32(0)
		if hit.Score_ != nil {
			score = float32(*hit.Score_)
		}
		docs = append(docs, types.RetrievedDocument{
			Chunk: types.Chunk{
				ID:         row.ChunkID,
				DocumentID: row.DocumentID,
				Text:       row.Content,
				Section:    row.Section,
				Page:       row.Page,
			},
			SparseScore: score,
			Rank:        i + 1,
		})
	}
	return docs, nil
}

// Available reports whether Elasticsearch answers a lightweight ping.
func (e *ElasticsearchIndex) Available(ctx context.Context) bool {
	resp, err := e.client.Ping().Do(ctx)
	return err == nil && resp
}

type esChunkSource struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Section    string `json:"section"`
	Page       int    `json:"page"`
}

var _ interfaces.SparseIndex = (*ElasticsearchIndex)(nil)
