// Package vectorstore implements the dense retrieval backend (C3): a
// pgvector-backed store plus an in-memory mock used in tests. Both satisfy
// interfaces.VectorStore.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// chunkRow is the pgvector-backed row for one indexed chunk, trimmed to
// the fields the chunk model actually carries.
type chunkRow struct {
	ChunkID    string              `gorm:"column:chunk_id"`
	DocumentID string              `gorm:"column:document_id"`
	Content    string              `gorm:"column:content"`
	Section    string              `gorm:"column:section"`
	Page       int                 `gorm:"column:page"`
	Dimension  int                 `gorm:"column:dimension"`
	Embedding  pgvector.HalfVector `gorm:"column:embedding"`
	Score      float64             `gorm:"column:score"`
}

// PgvectorStore is the PostgreSQL/pgvector-backed VectorStore.
type PgvectorStore struct {
	db    *gorm.DB
	table string
}

// NewPgvectorStore wraps an existing *gorm.DB connection. The dense store
// being unavailable is fatal — grounded answers cannot be produced without
// it — so this constructor does not itself degrade on error.
func NewPgvectorStore(db *gorm.DB, table string) *PgvectorStore {
	if table == "" {
		table = "chunks"
	}
	return &PgvectorStore{db: db, table: table}
}

// Search returns the topK nearest chunks to embedding by cosine distance,
// using the `<=>` pgvector operator and a score-as-1-minus-distance
// convention.
func (s *PgvectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]types.RetrievedDocument, error) {
	dimension := len(embedding)
	vec := pgvector.NewHalfVector(embedding)

	var rows []chunkRow
	err := s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  fmt.Sprintf("embedding::halfvec(%d) <=> ?::halfvec", dimension),
			Vars: []interface{}{vec},
		}}).
		Select(fmt.Sprintf(
			"chunk_id, document_id, content, section, page, dimension, embedding, "+
				"(1 - (embedding::halfvec(%d) <=> ?::halfvec)) as score", dimension,
		), vec).
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		logger.Errorf(ctx, "vectorstore: pgvector search failed: %v", err)
		return nil, fmt.Errorf("pgvector search: %w", err)
	}

	docs := make([]types.RetrievedDocument, len(rows))
	for i, r := range rows {
		docs[i] = types.RetrievedDocument{
			Chunk: types.Chunk{
				ID:         r.ChunkID,
				DocumentID: r.DocumentID,
				Text:       r.Content,
				Section:    r.Section,
				Page:       r.Page,
			},
			DenseScore: float32(r.Score),
			Rank:       i + 1,
		}
	}
	return docs, nil
}

var _ interfaces.VectorStore = (*PgvectorStore)(nil)
