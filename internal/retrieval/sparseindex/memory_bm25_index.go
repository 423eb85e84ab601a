package sparseindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/yanyiwu/gojieba"

	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// bm25K1 and bm25B are the classic Okapi BM25 tuning constants.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// MemoryBM25Index is the in-process sparse fallback used when Elasticsearch
// reports unavailable. It tokenizes with the same jieba search-mode
// segmentation used at ingestion time, here repurposed for scoring
// instead of chunking.
type MemoryBM25Index struct {
	jieba *gojieba.Jieba

	mu       sync.RWMutex
	docs     []types.Chunk
	termFreq []map[string]int // per-doc term frequency
	docLen   []int
	avgLen   float64
	df       map[string]int // document frequency per term
}

// NewMemoryBM25Index builds an empty in-process index. Load populates it.
func NewMemoryBM25Index() *MemoryBM25Index {
	return &MemoryBM25Index{
		jieba: gojieba.NewJieba(),
		df:    make(map[string]int),
	}
}

// Close releases the jieba tokenizer's native resources.
func (m *MemoryBM25Index) Close() {
	m.jieba.Free()
}

func (m *MemoryBM25Index) tokenize(text string) []string {
	return m.jieba.CutForSearch(text, true)
}

// Load (re)builds the index over the given chunks. Call it once at
// startup and again whenever the underlying corpus changes; it is not
// meant to track a live ingestion pipeline (ingestion is out of scope).
func (m *MemoryBM25Index) Load(chunks []types.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs = chunks
	m.termFreq = make([]map[string]int, len(chunks))
	m.docLen = make([]int, len(chunks))
	m.df = make(map[string]int)

	var totalLen int
	for i, chunk := range chunks {
		terms := m.tokenize(chunk.Text)
		freq := make(map[string]int, len(terms))
		for _, term := range terms {
			freq[term]++
		}
		m.termFreq[i] = freq
		m.docLen[i] = len(terms)
		totalLen += len(terms)
		for term := range freq {
			m.df[term]++
		}
	}
	if len(chunks) > 0 {
		m.avgLen = float64(totalLen) / float64(len(chunks))
	}
}

// Search ranks indexed chunks by BM25 score against the query's terms.
func (m *MemoryBM25Index) Search(ctx context.Context, query string, topK int) ([]types.RetrievedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTerms := m.tokenize(query)
	n := len(m.docs)
	scores := make([]float64, n)

	for _, term := range queryTerms {
		docFreq, ok := m.df[term]
		if !ok || docFreq == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
		for i := 0; i < n; i++ {
			tf := float64(m.termFreq[i][term])
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(m.docLen[i])/maxAvg(m.avgLen))
			scores[i] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, n)
	for i, s := range scores {
		if s > 0 {
			ranked = append(ranked, scored{idx: i, score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	docs := make([]types.RetrievedDocument, len(ranked))
	for i, r := range ranked {
		docs[i] = types.RetrievedDocument{
			Chunk:       m.docs[r.idx],
			SparseScore: float32(r.score),
			Rank:        i + 1,
		}
	}
	return docs, nil
}

// Available always reports true: the in-memory index has no external
// dependency to go unavailable.
func (m *MemoryBM25Index) Available(ctx context.Context) bool {
	return true
}

func maxAvg(avg float64) float64 {
	if avg == 0 {
		return 1
	}
	return avg
}

var _ interfaces.SparseIndex = (*MemoryBM25Index)(nil)
