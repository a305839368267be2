// Package sqlstore keeps chunk vectors in a plain SQL table (SQLite or
// MySQL) and ranks them with cosine similarity in process.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

type ChunkVector struct {
	ID         string         `gorm:"type:varchar(64);primaryKey"`
	IndexName  string         `gorm:"type:varchar(64);not null;index:idx_chunk_vec_ns,priority:1"`
	Namespace  string         `gorm:"type:varchar(64);not null;index:idx_chunk_vec_ns,priority:2"`
	ChunkIndex int            `gorm:"not null"`
	Page       int            `gorm:"not null;default:0"`
	Content    string         `gorm:"type:text;not null"`
	Embedding  datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
}

func (ChunkVector) TableName() string { return "chunk_vectors" }

type Store struct {
	db *gorm.DB
}

var _ vectorstore.Backend = (*Store)(nil)

// New migrates the chunk_vectors table and returns a store over it.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ChunkVector{}); err != nil {
		return nil, fmt.Errorf("migrate chunk_vectors: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, index, namespace string, recs []vectorstore.Record) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]ChunkVector, len(recs))
	for i, r := range recs {
		raw, err := json.Marshal(r.Values)
		if err != nil {
			return err
		}
		rows[i] = ChunkVector{
			ID:         r.ID,
			IndexName:  index,
			Namespace:  namespace,
			ChunkIndex: r.Index,
			Page:       r.Page,
			Content:    r.Text,
			Embedding:  datatypes.JSON(raw),
		}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(rows, 100).Error
}

func (s *Store) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	var rows []ChunkVector
	if err := s.db.WithContext(ctx).
		Where("index_name = ? AND namespace = ?", index, namespace).
		Order("chunk_index ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	recs := make([]vectorstore.Record, 0, len(rows))
	for _, row := range rows {
		var values []float32
		if err := json.Unmarshal(row.Embedding, &values); err != nil {
			return nil, fmt.Errorf("decode embedding %s: %w", row.ID, err)
		}
		recs = append(recs, vectorstore.Record{
			ID:     row.ID,
			Text:   row.Content,
			Page:   row.Page,
			Index:  row.ChunkIndex,
			Values: values,
		})
	}
	return vectorstore.RankTopK(recs, vector, topK), nil
}

// DeleteNamespace drops every chunk of one namespace.
func (s *Store) DeleteNamespace(ctx context.Context, index, namespace string) error {
	return s.db.WithContext(ctx).
		Where("index_name = ? AND namespace = ?", index, namespace).
		Delete(&ChunkVector{}).Error
}
