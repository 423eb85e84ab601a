package vectorstore

import (
	"context"
	"math"
	"sort"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// MockStore is an in-process VectorStore over a fixed set of
// (chunk, embedding) pairs, used in tests that need deterministic dense
// retrieval without a database.
type MockStore struct {
	Chunks     []types.Chunk
	Embeddings [][]float32
}

// Search ranks stored chunks by cosine similarity to embedding.
func (m *MockStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievedDocument, error) {
	type scored struct {
		doc types.RetrievedDocument
		sim float32
	}
	all := make([]scored, 0, len(m.Chunks))
	for i, chunk := range m.Chunks {
		var vec []float32
		if i < len(m.Embeddings) {
			vec = m.Embeddings[i]
		}
		all = append(all, scored{
			doc: types.RetrievedDocument{Chunk: chunk},
			sim: cosine(embedding, vec),
		})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].sim > all[j].sim })
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}
	docs := make([]types.RetrievedDocument, len(all))
	for i, s := range all {
		s.doc.DenseScore = s.sim
		s.doc.Rank = i + 1
		docs[i] = s.doc
	}
	return docs, nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ interfaces.VectorStore = (*MockStore)(nil)
