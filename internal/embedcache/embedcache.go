// Package embedcache memoizes embedding vectors so re-uploading the same
// document, or asking the same question twice, skips the embedding call.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

const (
	kindDocument = "doc"
	kindQuery    = "query"

	keyPrefix = "pdfrag:embed:"
)

// Store is a key/value backend for vectors.
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// MemoryStore keeps vectors in-process with go-cache.
type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{c: cache.New(ttl, 10*time.Minute)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]float32, bool, error) {
	if x, found := m.c.Get(key); found {
		return x.([]float32), true, nil
	}
	return nil, false, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, vec []float32) error {
	m.c.Set(key, vec, cache.DefaultExpiration)
	return nil
}

// RedisStore keeps vectors in Redis as JSON arrays.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, vec []float32) error {
	raw, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, raw, r.ttl).Err()
}

// Embedder wraps another ai.Embedder. Cache errors are logged and the
// wrapped embedder is called as if the entry were missing.
type Embedder struct {
	next  ai.Embedder
	store Store
	log   *logger.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func New(next ai.Embedder, store Store, log *logger.Logger) *Embedder {
	if log == nil {
		log = logger.Nop()
	}
	return &Embedder{next: next, store: store, log: log}
}

func (e *Embedder) Model() string { return e.next.Model() }

func (e *Embedder) key(kind, text string) string {
	sum := sha256.Sum256([]byte(e.next.Model() + "\x00" + kind + "\x00" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vec, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.log.Warn("embedcache", "cache read failed", map[string]any{"error": err})
		return nil, false
	}
	return vec, ok
}

func (e *Embedder) save(ctx context.Context, key string, vec []float32) {
	if err := e.store.Set(ctx, key, vec); err != nil {
		e.log.Warn("embedcache", "cache write failed", map[string]any{"error": err})
	}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		keys[i] = e.key(kindDocument, t)
		if vec, ok := e.lookup(ctx, keys[i]); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := e.next.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		e.save(ctx, keys[i], vecs[j])
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.key(kindQuery, text)
	if vec, ok := e.lookup(ctx, key); ok {
		return vec, nil
	}
	vec, err := e.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	e.save(ctx, key, vec)
	return vec, nil
}
