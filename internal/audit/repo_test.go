package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/pdf-rag/internal/events"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := NewRepo(db).Migrate(); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestRecordEvent_IdempotentByNamespace(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	e := events.DocumentIngested("ns-1", "sample.pdf", 2, 7)
	created, err := repo.RecordEvent(ctx, e)
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to create a record")
	}

	created, err = repo.RecordEvent(ctx, e)
	if err != nil {
		t.Fatalf("record redelivered event: %v", err)
	}
	if created {
		t.Fatalf("expected redelivery to reuse the existing record")
	}

	rec, err := repo.GetByNamespace(ctx, "ns-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Filename != "sample.pdf" || rec.Chunks != 7 || rec.Pages != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", rec.ID)
	}
}

func TestRecordEvent_IgnoresOtherTypes(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	created, err := repo.RecordEvent(context.Background(), events.Event{Type: "document.deleted", Namespace: "x"})
	if err != nil || created {
		t.Fatalf("expected ignore, got created=%v err=%v", created, err)
	}
}

func TestRecordEvent_RequiresNamespace(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	if _, err := repo.RecordEvent(context.Background(), events.Event{Type: events.TypeDocumentIngested}); err == nil {
		t.Fatalf("expected error for missing namespace")
	}
}

func TestListRecent_NewestFirst(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := events.DocumentIngested(fmt.Sprintf("ns-%d", i), "f.pdf", 1, 1)
		e.OccurredAt = base.Add(time.Duration(i) * time.Hour)
		if _, err := repo.RecordEvent(ctx, e); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Namespace != "ns-2" || recs[1].Namespace != "ns-1" {
		t.Fatalf("unexpected order: %s, %s", recs[0].Namespace, recs[1].Namespace)
	}
}
