// Package rerank implements the two-stage reranker: a mandatory
// cross-encoder pass batched through an ants worker pool (mirroring the
// teacher's GPU-batch-serialization use of ants elsewhere in the model
// layer), followed by a preferred neural reranker or, failing that, a
// single-batched-prompt LLM reranker. Final scores fuse both stages.
package rerank

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// batchSize batches cross-encoder scoring requests 16-32 documents at a time.
const batchSize = 32

// CrossEncoderStage runs the mandatory stage-one cross-encoder pass,
// batching candidates through a bounded ants worker pool so a large
// candidate set (the advanced strategy can hand it up to 10 documents,
// but the pool generalizes to whatever topN the caller configures) never
// spawns more concurrent scoring calls than the pool allows.
type CrossEncoderStage struct {
	encoder interfaces.CrossEncoder
	pool    *ants.Pool
}

// NewCrossEncoderStage builds a stage with its own worker pool of the
// given concurrency (0 uses ants' default).
func NewCrossEncoderStage(encoder interfaces.CrossEncoder, concurrency int) (*CrossEncoderStage, error) {
	var pool *ants.Pool
	var err error
	if concurrency > 0 {
		pool, err = ants.NewPool(concurrency)
	} else {
		pool, err = ants.NewPool(ants.DefaultAntsPoolSize)
	}
	if err != nil {
		return nil, err
	}
	return &CrossEncoderStage{encoder: encoder, pool: pool}, nil
}

// Release frees the worker pool.
func (s *CrossEncoderStage) Release() {
	s.pool.Release()
}

// Score batches candidates into groups of batchSize and scores each batch
// concurrently through the pool, returning scores in input order.
func (s *CrossEncoderStage) Score(ctx context.Context, query string, candidates []types.RetrievedDocument) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores := make([]float32, len(candidates))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		offset := start

		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			batchScores, err := s.encoder.Score(ctx, query, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for i, sc := range batchScores {
				scores[offset+i] = sc
			}
		})
		if submitErr != nil {
			wg.Done()
			logger.Warnf(ctx, "rerank: cross-encoder batch submit failed, scoring inline: %v", submitErr)
			batchScores, err := s.encoder.Score(ctx, query, batch)
			if err != nil {
				return nil, err
			}
			for i, sc := range batchScores {
				scores[offset+i] = sc
			}
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}
