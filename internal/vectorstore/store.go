// Package vectorstore writes document chunks with their embeddings into a
// namespaced vector index and reads the nearest ones back.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/chunker"
)

const (
	DefaultMaxConcurrency = 5
	DefaultBatchSize      = 32
	DefaultTopK           = 4
)

var (
	ErrStore            = errors.New("vectorstore: store failed")
	ErrRetrieve         = errors.New("vectorstore: retrieve failed")
	ErrMissingNamespace = errors.New("vectorstore: namespace is required")
)

// Record is one chunk as stored in the index.
type Record struct {
	ID     string
	Text   string
	Page   int
	Index  int
	Values []float32
}

// Match is a Record returned by a similarity query; higher Score is closer.
type Match struct {
	Record
	Score float64
}

// Backend is a vector index partitioned by namespace. A query never
// returns records from another namespace.
type Backend interface {
	Upsert(ctx context.Context, index, namespace string, recs []Record) error
	Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]Match, error)
}

type Options struct {
	Index          string
	Namespace      string
	MaxConcurrency int
	BatchSize      int
	TopK           int
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// RecordID names a chunk inside its namespace.
func RecordID(namespace string, index int) string {
	return fmt.Sprintf("%s-%d", namespace, index)
}

// StoreDocuments embeds chunks in batches, with at most MaxConcurrency
// embedding requests in flight, then upserts every record under
// opts.Namespace. Nothing is upserted if any embedding call fails.
func StoreDocuments(ctx context.Context, backend Backend, embedder ai.Embedder, chunks []chunker.Chunk, opts Options) (int, error) {
	opts = opts.withDefaults()
	if opts.Namespace == "" {
		return 0, fmt.Errorf("%w: %w", ErrStore, ErrMissingNamespace)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	recs := make([]Record, len(chunks))
	for i, c := range chunks {
		recs[i] = Record{ID: RecordID(opts.Namespace, c.Index), Text: c.Text, Page: c.Page, Index: c.Index}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrency)
	for start := 0; start < len(recs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(recs))
		batch := recs[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}
			vecs, err := embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", batch[0].Index, batch[len(batch)-1].Index, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(batch))
			}
			for i := range batch {
				batch[i].Values = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if err := backend.Upsert(ctx, opts.Index, opts.Namespace, recs); err != nil {
		return 0, fmt.Errorf("%w: upsert: %w", ErrStore, err)
	}
	return len(recs), nil
}

// Retriever answers similarity queries against one namespace only.
type Retriever struct {
	backend   Backend
	embedder  ai.Embedder
	index     string
	namespace string
	topK      int
}

func NewRetriever(backend Backend, embedder ai.Embedder, opts Options) (*Retriever, error) {
	opts = opts.withDefaults()
	if opts.Namespace == "" {
		return nil, ErrMissingNamespace
	}
	return &Retriever{
		backend:   backend,
		embedder:  embedder,
		index:     opts.Index,
		namespace: opts.Namespace,
		topK:      opts.TopK,
	}, nil
}

func (r *Retriever) Namespace() string { return r.namespace }

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]Match, error) {
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", ErrRetrieve, err)
	}
	matches, err := r.backend.Query(ctx, r.index, r.namespace, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieve, err)
	}
	return matches, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RankTopK scores every record against vector and keeps the best topK,
// ties broken by chunk index.
func RankTopK(recs []Record, vector []float32, topK int) []Match {
	matches := make([]Match, 0, len(recs))
	for _, r := range recs {
		matches = append(matches, Match{Record: r, Score: Cosine(r.Values, vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
