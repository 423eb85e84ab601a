package cache

import (
	"context"
	"testing"
	"time"

	"github.com/policyqa/core/internal/types"
)

func testOpts() Options {
	return Options{
		ExactTTL:           time.Hour,
		SemanticTTL:        10 * time.Minute,
		SimThreshold:       0.98,
		OverlapThreshold:   0.80,
		SemanticCandidates: 200,
		EnableSemantic:     true,
	}
}

func TestGetMissOnEmptyStore(t *testing.T) {
	c := NewWithStore(newMemoryStore(), nil, testOpts())
	q := types.Query{Text: "What is the refund policy?"}
	_, _, ok := c.Get(context.Background(), q, []float32{1, 0, 0})
	if ok {
		t.Fatal("expected miss on empty store")
	}
}

func TestStageAExactHit(t *testing.T) {
	c := NewWithStore(newMemoryStore(), nil, testOpts())
	q := types.Query{Text: "What is the refund policy?"}
	answer := types.Answer{Text: "30 days.", Confidence: 0.9}

	if err := c.Put(context.Background(), q, []float32{1, 0, 0}, answer); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, stage, ok := c.Get(context.Background(), q, []float32{1, 0, 0})
	if !ok {
		t.Fatal("expected exact hit")
	}
	if stage != types.CacheStageExact {
		t.Errorf("expected stage exact, got %s", stage)
	}
	if got.Text != answer.Text {
		t.Errorf("expected %q, got %q", answer.Text, got.Text)
	}
	if !got.FromCache {
		t.Error("expected FromCache true")
	}
}

func TestStageBNormalizedHit(t *testing.T) {
	c := NewWithStore(newMemoryStore(), nil, testOpts())
	stored := types.Query{Text: "The refund policy"}
	answer := types.Answer{Text: "30 days.", Confidence: 0.9}
	if err := c.Put(context.Background(), stored, []float32{1, 0, 0}, answer); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	lookup := types.Query{Text: "  refund   policy  "}
	got, stage, ok := c.Get(context.Background(), lookup, []float32{0, 1, 0})
	if !ok {
		t.Fatal("expected normalized hit")
	}
	if stage != types.CacheStageNormalized {
		t.Errorf("expected stage normalized, got %s", stage)
	}
	if got.Text != answer.Text {
		t.Errorf("expected %q, got %q", answer.Text, got.Text)
	}
}

func TestStageCSemanticHitWithValidation(t *testing.T) {
	sharedIDs := map[string]struct{}{"chunk-1": {}, "chunk-2": {}}
	retrieveIDsOnly := func(ctx context.Context, embedding []float32) (map[string]struct{}, error) {
		return sharedIDs, nil
	}
	c := NewWithStore(newMemoryStore(), retrieveIDsOnly, testOpts())

	stored := types.Query{Text: "What is the leave entitlement for new hires?"}
	answer := types.Answer{
		Text: "20 days per year.",
		Citations: []types.SourceCitation{
			{ChunkID: "chunk-1"}, {ChunkID: "chunk-2"},
		},
	}
	embedding := []float32{0.6, 0.8, 0}
	if err := c.Put(context.Background(), stored, embedding, answer); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	lookup := types.Query{Text: "How many leave days do new hires get?"}
	got, stage, ok := c.Get(context.Background(), lookup, embedding)
	if !ok {
		t.Fatal("expected semantic hit")
	}
	if stage != types.CacheStageSemantic {
		t.Errorf("expected stage semantic, got %s", stage)
	}
	if got.Text != answer.Text {
		t.Errorf("expected %q, got %q", answer.Text, got.Text)
	}
}

func TestStageCRejectsOnLowOverlap(t *testing.T) {
	retrieveIDsOnly := func(ctx context.Context, embedding []float32) (map[string]struct{}, error) {
		return map[string]struct{}{"chunk-unrelated": {}}, nil
	}
	c := NewWithStore(newMemoryStore(), retrieveIDsOnly, testOpts())

	stored := types.Query{Text: "What is the leave entitlement?"}
	answer := types.Answer{
		Text: "20 days per year.",
		Citations: []types.SourceCitation{
			{ChunkID: "chunk-1"}, {ChunkID: "chunk-2"},
		},
	}
	embedding := []float32{0.6, 0.8, 0}
	if err := c.Put(context.Background(), stored, embedding, answer); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	lookup := types.Query{Text: "Completely unrelated question?"}
	_, _, ok := c.Get(context.Background(), lookup, embedding)
	if ok {
		t.Fatal("expected no hit when overlap validation fails")
	}
}

func TestStageCRejectsBelowSimilarityThreshold(t *testing.T) {
	retrieveIDsOnly := func(ctx context.Context, embedding []float32) (map[string]struct{}, error) {
		return map[string]struct{}{"chunk-1": {}}, nil
	}
	c := NewWithStore(newMemoryStore(), retrieveIDsOnly, testOpts())

	stored := types.Query{Text: "What is the leave entitlement?"}
	answer := types.Answer{
		Text:      "20 days per year.",
		Citations: []types.SourceCitation{{ChunkID: "chunk-1"}},
	}
	if err := c.Put(context.Background(), stored, []float32{1, 0, 0}, answer); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// Orthogonal vector: cosine similarity is 0, far below threshold.
	_, _, ok := c.Get(context.Background(), types.Query{Text: "orthogonal query"}, []float32{0, 1, 0})
	if ok {
		t.Fatal("expected no hit below similarity threshold")
	}
}

func TestGetDegradesOnStoreError(t *testing.T) {
	c := NewWithStore(&erroringStore{}, nil, testOpts())
	_, _, ok := c.Get(context.Background(), types.Query{Text: "anything"}, []float32{1, 0})
	if ok {
		t.Fatal("expected degrade-to-miss on store error")
	}
}

func TestPutDegradesOnStoreError(t *testing.T) {
	c := NewWithStore(&erroringStore{}, nil, testOpts())
	if err := c.Put(context.Background(), types.Query{Text: "anything"}, []float32{1, 0}, types.Answer{}); err != nil {
		t.Fatalf("expected Put to degrade silently, got error: %v", err)
	}
}

type erroringStore struct{}

func (e *erroringStore) Get(ctx context.Context, key string) (types.CacheEntry, bool, error) {
	return types.CacheEntry{}, false, context.DeadlineExceeded
}

func (e *erroringStore) Set(ctx context.Context, key string, entry types.CacheEntry, ttl time.Duration, semantic bool) error {
	return context.DeadlineExceeded
}

func (e *erroringStore) ScanRecent(ctx context.Context, limit int) ([]types.CacheEntry, error) {
	return nil, context.DeadlineExceeded
}

func (e *erroringStore) PruneSemanticCandidates(ctx context.Context, keep int) error {
	return context.DeadlineExceeded
}
