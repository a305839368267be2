// Package rag runs the two workflows of the server: ingesting one PDF into
// a fresh namespace, and answering questions against it.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/chunker"
	"github.com/suPer8Hu/pdf-rag/internal/events"
	"github.com/suPer8Hu/pdf-rag/internal/intake"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
	"github.com/suPer8Hu/pdf-rag/internal/pdftext"
	"github.com/suPer8Hu/pdf-rag/internal/session"
	"github.com/suPer8Hu/pdf-rag/internal/tracing"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

const (
	MsgProcessed   = "PDF processed. You can now ask questions about it."
	MsgQueryFailed = "Sorry, an error occurred while getting the answer."

	module = "rag"
)

var (
	ErrNotIngested   = errors.New("no document has been ingested yet")
	ErrEmptyQuestion = errors.New("question is empty")
	ErrQueryFailed   = errors.New("failed to answer question")
	// ErrStore is vectorstore.ErrStore so either can be matched.
	ErrStore = vectorstore.ErrStore
)

type Config struct {
	Index          string
	ChunkSize      int
	ChunkOverlap   int
	MaxConcurrency int
	TopK           int
}

type Deps struct {
	Session   *session.Session
	Extractor pdftext.Extractor
	Backend   vectorstore.Backend
	Embedder  ai.Embedder
	Provider  ai.Provider
	Publisher events.Publisher
	Logger    *logger.Logger
}

type Service struct {
	session   *session.Session
	extractor pdftext.Extractor
	splitter  *chunker.Splitter
	backend   vectorstore.Backend
	embedder  ai.Embedder
	provider  ai.Provider
	publisher events.Publisher
	log       *logger.Logger
	tracer    trace.Tracer
	cfg       Config

	newNamespace func() string
}

func NewService(d Deps, cfg Config) (*Service, error) {
	if d.Session == nil || d.Extractor == nil || d.Backend == nil || d.Embedder == nil || d.Provider == nil {
		return nil, errors.New("rag: session, extractor, backend, embedder and provider are required")
	}
	if cfg.ChunkSize == 0 && cfg.ChunkOverlap == 0 {
		cfg.ChunkSize, cfg.ChunkOverlap = chunker.DefaultSize, chunker.DefaultOverlap
	}
	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Service{
		session:      d.Session,
		extractor:    d.Extractor,
		splitter:     splitter,
		backend:      d.Backend,
		embedder:     d.Embedder,
		provider:     d.Provider,
		publisher:    d.Publisher,
		log:          d.Logger,
		tracer:       tracing.Tracer("github.com/suPer8Hu/pdf-rag/internal/rag"),
		cfg:          cfg,
		newNamespace: uuid.NewString,
	}, nil
}

func (s *Service) Session() *session.Session { return s.session }

type IngestResult struct {
	Namespace string
	Filename  string
	Pages     int
	Chunks    int
}

// Ingest extracts, chunks, embeds and stores one PDF under a new namespace.
// The session is reset to that namespace only once storage succeeded; on
// any error the previous document stays queryable.
func (s *Service) Ingest(ctx context.Context, up intake.Upload) (IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "rag.Ingest", trace.WithAttributes(
		attribute.String("pdf.filename", up.Filename),
		attribute.Int("pdf.bytes", len(up.Data)),
	))
	defer span.End()
	start := time.Now()

	segments, err := s.extractor.Extract(ctx, up.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract")
		return IngestResult{}, fmt.Errorf("extract text: %w", err)
	}

	chunks := s.splitter.SplitSegments(segments)
	namespace := s.newNamespace()
	span.SetAttributes(attribute.Int("pdf.pages", len(segments)), attribute.Int("pdf.chunks", len(chunks)))

	s.log.Info(module, "embedding document", map[string]any{
		"filename":  up.Filename,
		"pages":     len(segments),
		"chunks":    len(chunks),
		"namespace": namespace,
	})

	stored, err := vectorstore.StoreDocuments(ctx, s.backend, s.embedder, chunks, vectorstore.Options{
		Index:          s.cfg.Index,
		Namespace:      namespace,
		MaxConcurrency: s.cfg.MaxConcurrency,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store")
		s.log.Error(module, "failed to store document", map[string]any{
			"filename":  up.Filename,
			"namespace": namespace,
			"error":     err,
		})
		return IngestResult{}, err
	}

	s.session.Reset(namespace, session.NewMessage(session.RoleSystem, MsgProcessed))

	res := IngestResult{Namespace: namespace, Filename: up.Filename, Pages: len(segments), Chunks: stored}
	if err := s.publisher.Publish(ctx, events.DocumentIngested(namespace, up.Filename, res.Pages, res.Chunks)); err != nil {
		s.log.Warn(module, "failed to publish ingestion event", map[string]any{"namespace": namespace, "error": err})
	}

	s.log.Info(module, "document ingested", map[string]any{
		"namespace": namespace,
		"chunks":    stored,
		"cost":      time.Since(start).String(),
	})
	return res, nil
}

// Ask answers a question from the active document. Retrieval and generation
// failures are recorded in the transcript as one system message and
// returned wrapped in ErrQueryFailed.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	namespace, ok := s.session.Namespace()
	if !ok {
		return "", ErrNotIngested
	}

	ctx, span := s.tracer.Start(ctx, "rag.Ask", trace.WithAttributes(attribute.String("rag.namespace", namespace)))
	defer span.End()

	answer, err := s.answer(ctx, namespace, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer")
		s.log.Error(module, "failed to answer question", map[string]any{
			"namespace": namespace,
			"question":  question,
			"error":     err,
		})
		s.session.AppendFor(namespace, session.NewMessage(session.RoleSystem, MsgQueryFailed))
		return "", fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	if !s.session.AppendFor(namespace,
		session.NewMessage(session.RoleUser, question),
		session.NewMessage(session.RoleAI, answer),
	) {
		s.log.Warn(module, "answer dropped, a newer document replaced the session", map[string]any{"namespace": namespace})
	}
	return answer, nil
}

func (s *Service) answer(ctx context.Context, namespace, question string) (string, error) {
	retriever, err := vectorstore.NewRetriever(s.backend, s.embedder, vectorstore.Options{
		Index:     s.cfg.Index,
		Namespace: namespace,
		TopK:      s.cfg.TopK,
	})
	if err != nil {
		return "", err
	}

	matches, err := retriever.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	reply, err := s.provider.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: BuildPrompt(question, matches)}})
	if err != nil {
		return "", err
	}
	return reply, nil
}
