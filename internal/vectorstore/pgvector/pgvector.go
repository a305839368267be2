// Package pgvector stores chunk vectors in Postgres with the pgvector
// extension and lets the database rank them by cosine distance.
package pgvector

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

type ChunkEmbedding struct {
	ID         string          `gorm:"type:varchar(64);primaryKey"`
	IndexName  string          `gorm:"type:varchar(64);not null;index:idx_chunk_emb_ns,priority:1"`
	Namespace  string          `gorm:"type:varchar(64);not null;index:idx_chunk_emb_ns,priority:2"`
	ChunkIndex int             `gorm:"not null"`
	Page       int             `gorm:"not null;default:0"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (ChunkEmbedding) TableName() string { return "chunk_embeddings" }

// scored is ChunkEmbedding plus the distance column selected by Query.
type scored struct {
	ChunkEmbedding
	Distance float64
}

type Store struct {
	db *gorm.DB
}

var _ vectorstore.Backend = (*Store)(nil)

// New enables the vector extension and migrates chunk_embeddings.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&ChunkEmbedding{}); err != nil {
		return nil, fmt.Errorf("migrate chunk_embeddings: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, index, namespace string, recs []vectorstore.Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]ChunkEmbedding, len(recs))
	for i, r := range recs {
		rows[i] = ChunkEmbedding{
			ID:         r.ID,
			IndexName:  index,
			Namespace:  namespace,
			ChunkIndex: r.Index,
			Page:       r.Page,
			Content:    r.Text,
			Embedding:  pgvector.NewVector(r.Values),
		}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 100).Error
}

func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	q := pgvector.NewVector(vector)

	var rows []scored
	err := s.db.WithContext(ctx).
		Model(&ChunkEmbedding{}).
		Select("*, embedding <=> ? AS distance", q).
		Where("index_name = ? AND namespace = ?", index, namespace).
		Order(gorm.Expr("embedding <=> ?", q)).
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]vectorstore.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, vectorstore.Match{
			Record: vectorstore.Record{
				ID:     r.ID,
				Text:   r.Content,
				Page:   r.Page,
				Index:  r.ChunkIndex,
				Values: r.Embedding.Slice(),
			},
			Score: 1 - r.Distance,
		})
	}
	return out, nil
}
