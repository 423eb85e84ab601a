package analytics

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/policyqa/core/internal/types"
)

// record is one query/answer observation in parquet format.
type record struct {
	RecordedAt     int64   `parquet:"recorded_at"`     // unix millis
	SessionID      string  `parquet:"session_id"`
	QueryText      string  `parquet:"query_text"`
	NormalizedText string  `parquet:"normalized_text"`
	AnswerText     string  `parquet:"answer_text"`
	Confidence     float32 `parquet:"confidence"`
	QueryType      string  `parquet:"query_type"`
	Strategy       string  `parquet:"strategy"`
	CacheStage     string  `parquet:"cache_stage"`
	IsFollowup     bool    `parquet:"is_followup"`
	CitationCount  int64   `parquet:"citation_count"`
	DegradedDeps   string  `parquet:"degraded_deps"`
}

func newRecord(nowMillis int64, q types.Query, a types.Answer, e types.QueryExplanation) record {
	degraded := ""
	for i, d := range e.DegradedDeps {
		if i > 0 {
			degraded += ","
		}
		degraded += d
	}
	return record{
		RecordedAt:     nowMillis,
		SessionID:      q.SessionID,
		QueryText:      q.Text,
		NormalizedText: q.NormalizedText,
		AnswerText:     a.Text,
		Confidence:     a.Confidence,
		QueryType:      string(e.QueryType),
		Strategy:       string(e.Strategy),
		CacheStage:     string(a.CacheStage),
		IsFollowup:     e.IsFollowup,
		CitationCount:  int64(len(a.Citations)),
		DegradedDeps:   degraded,
	}
}

// encodeBatch serializes a batch of records into a single parquet file body.
func encodeBatch(batch []record) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, batch); err != nil {
		return nil, fmt.Errorf("failed to encode analytics batch: %w", err)
	}
	return buf.Bytes(), nil
}
