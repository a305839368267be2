package vectorstore

import (
	"context"
	"sync"
)

// Memory is an in-process Backend using brute-force cosine similarity.
// Contents are lost on restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]Record // key: index + "/" + namespace
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]Record)}
}

func memKey(index, namespace string) string { return index + "/" + namespace }

func (m *Memory) Upsert(_ context.Context, index, namespace string, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(index, namespace)
	existing := m.data[key]
	pos := make(map[string]int, len(existing))
	for i, r := range existing {
		pos[r.ID] = i
	}
	for _, r := range recs {
		if i, ok := pos[r.ID]; ok {
			existing[i] = r
			continue
		}
		pos[r.ID] = len(existing)
		existing = append(existing, r)
	}
	m.data[key] = existing
	return nil
}

func (m *Memory) Query(_ context.Context, index, namespace string, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return RankTopK(m.data[memKey(index, namespace)], vector, topK), nil
}

// Len reports how many records a namespace holds.
func (m *Memory) Len(index, namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[memKey(index, namespace)])
}
