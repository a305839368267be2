package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIngested(t *testing.T) {
	e := DocumentIngested("ns-1", "sample.pdf", 3, 12)
	assert.Equal(t, TypeDocumentIngested, e.Type)
	assert.False(t, e.OccurredAt.IsZero())

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"namespace":"ns-1"`)
	assert.Contains(t, string(raw), `"chunks":12`)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
