// Package analytics records every answered query to object storage as
// batched parquet files, for offline evaluation and drift analysis. It
// never blocks or fails the response path: the orchestrator calls
// Record from a detached background goroutine and only logs a failure.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/policyqa/core/internal/config"
	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// objectWriter is the minimal surface analytics needs from an object store;
// minioWriter and cosWriter are its two backends.
type objectWriter interface {
	PutObject(ctx context.Context, key string, data []byte) error
}

// Sink implements interfaces.AnalyticsSink by buffering records in memory
// and flushing them as a single parquet object once the batch fills, or on
// a timer so a quiet session's tail records aren't stranded indefinitely.
type Sink struct {
	writer    objectWriter
	batchSize int

	mu   sync.Mutex
	buf  []record

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds an analytics sink for the configured object store driver
// (mirrors models/embedding.NewEmbedder's switch-on-Source idiom).
func New(cfg *config.ObjectStoreConfig) (*Sink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("object store config is required")
	}
	var (
		writer objectWriter
		err    error
	)
	switch cfg.Driver {
	case "", "minio":
		writer, err = newMinioWriter(cfg)
	case "cos":
		writer, err = newCosWriter(cfg)
	default:
		return nil, fmt.Errorf("unknown object store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	s := &Sink{writer: writer, batchSize: batchSize, stop: make(chan struct{})}

	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s.wg.Add(1)
	go s.flushLoop(interval)
	return s, nil
}

var _ interfaces.AnalyticsSink = (*Sink)(nil)

// Record appends one observation to the in-memory batch, flushing
// synchronously if the batch just filled.
func (s *Sink) Record(ctx context.Context, q types.Query, a types.Answer, e types.QueryExplanation) error {
	rec := newRecord(time.Now().UnixMilli(), q, a, e)

	s.mu.Lock()
	s.buf = append(s.buf, rec)
	var batch []record
	if len(s.buf) >= s.batchSize {
		batch = s.buf
		s.buf = nil
	}
	s.mu.Unlock()

	if batch == nil {
		return nil
	}
	return s.flush(ctx, batch)
}

func (s *Sink) flush(ctx context.Context, batch []record) error {
	if len(batch) == 0 {
		return nil
	}
	data, err := encodeBatch(batch)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("analytics/%s/%s.parquet", time.Now().UTC().Format("2006/01/02"), uuid.New().String())
	return s.writer.PutObject(ctx, key, data)
}

func (s *Sink) flushLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			batch := s.buf
			s.buf = nil
			s.mu.Unlock()
			if len(batch) == 0 {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := s.flush(ctx, batch); err != nil {
				logger.Errorf(ctx, "analytics: periodic flush failed: %v", err)
			}
			cancel()
		case <-s.stop:
			return
		}
	}
}

// Close flushes any buffered records and stops the background ticker; it
// is registered as a cleanup hook alongside the rest of the component
// graph so nothing is lost on shutdown.
func (s *Sink) Close() error {
	close(s.stop)
	s.wg.Wait()

	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.flush(ctx, batch)
}
