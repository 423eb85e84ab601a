package analytics

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/policyqa/core/internal/types"
)

type fakeWriter struct {
	mu    sync.Mutex
	puts  [][]byte
	keys  []string
}

func (f *fakeWriter) PutObject(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	cp := make([]byte, len(data))
	copy(cp, data)
	f.puts = append(f.puts, cp)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func TestEncodeBatchRoundTrips(t *testing.T) {
	batch := []record{
		newRecord(1000, types.Query{SessionID: "s1", Text: "what is covered"},
			types.Answer{Text: "the deductible is $500", Confidence: 0.8},
			types.QueryExplanation{QueryType: types.QueryTypeSimple, Strategy: types.StrategySimple}),
	}
	data, err := encodeBatch(batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	rows, err := parquet.Read[record](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to read back parquet payload: %v", err)
	}
	if len(rows) != 1 || rows[0].SessionID != "s1" || rows[0].AnswerText != "the deductible is $500" {
		t.Fatalf("unexpected round-tripped rows: %+v", rows)
	}
}

func TestSinkFlushesOnceBatchFills(t *testing.T) {
	fw := &fakeWriter{}
	s := &Sink{writer: fw, batchSize: 2, stop: make(chan struct{})}
	defer close(s.stop)

	q := types.Query{SessionID: "s1", Text: "what is covered"}
	a := types.Answer{Text: "ok"}
	e := types.QueryExplanation{}

	if err := s.Record(context.Background(), q, a, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fw.count() != 0 {
		t.Fatalf("expected no flush before batch fills, got %d", fw.count())
	}
	if err := s.Record(context.Background(), q, a, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fw.count() != 1 {
		t.Fatalf("expected exactly one flush once the batch filled, got %d", fw.count())
	}
}

func TestSinkCloseFlushesPartialBatch(t *testing.T) {
	fw := &fakeWriter{}
	s := &Sink{writer: fw, batchSize: 10, stop: make(chan struct{})}

	q := types.Query{SessionID: "s1", Text: "what is covered"}
	if err := s.Record(context.Background(), q, types.Answer{Text: "ok"}, types.QueryExplanation{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error on close: %v", err)
	}
	if fw.count() != 1 {
		t.Fatalf("expected close to flush the partial batch, got %d", fw.count())
	}
}

func TestSinkPeriodicFlushUploadsPendingRecord(t *testing.T) {
	fw := &fakeWriter{}
	s := &Sink{writer: fw, batchSize: 100, stop: make(chan struct{})}
	s.wg.Add(1)
	go s.flushLoop(10 * time.Millisecond)

	if err := s.Record(context.Background(), types.Query{SessionID: "s1"}, types.Answer{}, types.QueryExplanation{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.After(time.Second)
	for fw.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected periodic flush to upload the pending record")
		case <-time.After(5 * time.Millisecond):
		}
	}
	_ = s.Close()
}
