package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/events"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	gdb, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := audit.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &handler{repo: repo, log: logger.Nop()}
}

func TestClampConcurrency(t *testing.T) {
	cases := map[int]int{-1: 2, 0: 2, 1: 1, 7: 7, 50: 50, 51: 50}
	for in, want := range cases {
		if got := clampConcurrency(in); got != want {
			t.Fatalf("clampConcurrency(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	e, err := decode([]byte(`{"type":"document.ingested","namespace":"ns-1","filename":"a.pdf","chunks":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Namespace != "ns-1" || e.Chunks != 3 {
		t.Fatalf("unexpected event: %+v", e)
	}

	for _, body := range []string{`not json`, `{"type":"document.ingested"}`, `{"namespace":"ns-1"}`} {
		if _, err := decode([]byte(body)); !errors.Is(err, errBadMessage) {
			t.Fatalf("decode(%q) err = %v, want errBadMessage", body, err)
		}
	}
}

func TestHandle_RecordsOnce(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	e := events.DocumentIngested("ns-1", "sample.pdf", 2, 5)

	for range 2 {
		if err := h.handle(ctx, e); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	recs, err := h.repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Namespace != "ns-1" {
		t.Fatalf("expected one record for ns-1, got %+v", recs)
	}
}

func TestHandle_IgnoresOtherTypes(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	if err := h.handle(ctx, events.Event{Type: "document.deleted", Namespace: "ns-1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	recs, err := h.repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}
