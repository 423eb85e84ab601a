package sparseindex

import (
	"context"
	"testing"

	"github.com/policyqa/core/internal/types"
)

func TestMemoryBM25RanksRelevantDocHigher(t *testing.T) {
	idx := NewMemoryBM25Index()
	defer idx.Close()

	idx.Load([]types.Chunk{
		{ID: "refund", Text: "This section describes the refund policy and eligible timelines."},
		{ID: "leave", Text: "This section describes employee leave entitlement rules."},
	})

	docs, err := idx.Search(context.Background(), "refund policy", 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("expected at least one result")
	}
	if docs[0].Chunk.ID != "refund" {
		t.Errorf("expected refund chunk to rank first, got %s", docs[0].Chunk.ID)
	}
}

func TestMemoryBM25AvailableAlwaysTrue(t *testing.T) {
	idx := NewMemoryBM25Index()
	defer idx.Close()
	if !idx.Available(context.Background()) {
		t.Error("expected in-memory index to always report available")
	}
}

func TestMemoryBM25EmptyIndex(t *testing.T) {
	idx := NewMemoryBM25Index()
	defer idx.Close()
	docs, err := idx.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("search on empty index failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no results on empty index, got %d", len(docs))
	}
}
