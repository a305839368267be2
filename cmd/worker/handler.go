package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/events"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

var errBadMessage = errors.New("bad message")

func clampConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func decode(body []byte) (events.Event, error) {
	var e events.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return events.Event{}, fmt.Errorf("%w: %w", errBadMessage, err)
	}
	if e.Type == "" || e.Namespace == "" {
		return events.Event{}, fmt.Errorf("%w: missing type or namespace", errBadMessage)
	}
	return e, nil
}

type handler struct {
	repo *audit.Repo
	log  *logger.Logger
}

func (h *handler) handle(ctx context.Context, e events.Event) error {
	if e.Type != events.TypeDocumentIngested {
		h.log.Debug(module, "ignoring event", map[string]any{"type": e.Type})
		return nil
	}
	created, err := h.repo.RecordEvent(ctx, e)
	if err != nil {
		return err
	}
	h.log.Info(module, "ingestion recorded", map[string]any{
		"namespace": e.Namespace,
		"filename":  e.Filename,
		"chunks":    e.Chunks,
		"duplicate": !created,
	})
	return nil
}
