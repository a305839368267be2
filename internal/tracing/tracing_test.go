package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown := Init(context.Background(), false, "", logger.Nop())
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}
