package audit

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/suPer8Hu/pdf-rag/internal/events"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&Record{})
}

func (r *Repo) GetByNamespace(ctx context.Context, namespace string) (*Record, error) {
	var rec Record
	if err := r.db.WithContext(ctx).
		Where("namespace = ?", namespace).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateOrGetExisting inserts rec unless a record for the same namespace
// already exists, in which case the existing one is returned. Redelivered
// events therefore never create duplicates.
func (r *Repo) CreateOrGetExisting(ctx context.Context, rec *Record) (*Record, bool, error) {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, true, nil
	}

	existing, getErr := r.GetByNamespace(ctx, rec.Namespace)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// RecordEvent stores a document.ingested event; other event types are ignored.
func (r *Repo) RecordEvent(ctx context.Context, e events.Event) (bool, error) {
	if e.Type != events.TypeDocumentIngested {
		return false, nil
	}
	if e.Namespace == "" {
		return false, errors.New("audit: event has no namespace")
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, created, err := r.CreateOrGetExisting(ctx, &Record{
		Namespace:  e.Namespace,
		Filename:   e.Filename,
		Pages:      e.Pages,
		Chunks:     e.Chunks,
		OccurredAt: occurred,
	})
	return created, err
}

// ListRecent returns records newest first.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []Record
	if err := r.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
