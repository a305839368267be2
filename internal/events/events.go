// Package events announces finished ingestions to an optional message bus.
package events

import (
	"context"
	"time"
)

const TypeDocumentIngested = "document.ingested"

// Event describes one successful ingestion. It carries metadata only,
// never document text.
type Event struct {
	Type       string    `json:"type"`
	Namespace  string    `json:"namespace"`
	Filename   string    `json:"filename"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	OccurredAt time.Time `json:"occurred_at"`
}

func DocumentIngested(namespace, filename string, pages, chunks int) Event {
	return Event{
		Type:       TypeDocumentIngested,
		Namespace:  namespace,
		Filename:   filename,
		Pages:      pages,
		Chunks:     chunks,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
