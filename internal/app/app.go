// Package app builds the server's object graph from configuration. The
// CLI commands and tests share it so every entry point wires the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/db"
	"github.com/suPer8Hu/pdf-rag/internal/embedcache"
	"github.com/suPer8Hu/pdf-rag/internal/events"
	"github.com/suPer8Hu/pdf-rag/internal/events/natsbus"
	"github.com/suPer8Hu/pdf-rag/internal/events/rabbitmq"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
	"github.com/suPer8Hu/pdf-rag/internal/pdftext"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
	"github.com/suPer8Hu/pdf-rag/internal/session"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore/pgvector"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore/pinecone"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore/sqlstore"
)

const defaultIndex = "pdfrag"

type App struct {
	Cfg   config.Config
	Log   *logger.Logger
	RAG   *rag.Service
	Audit *audit.Repo // nil when no database is configured
	DB    *gorm.DB

	closers []func() error
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRegistry registers every supported chat and embedding backend.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	gemini := func() *ai.GeminiProvider {
		return ai.NewGeminiProvider(cfg.GoogleAPIKey, cfg.GeminiChatModel, cfg.GeminiEmbeddingModel)
	}
	openai := func() (*ai.OpenAIProvider, error) {
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			ChatModel:      cfg.OpenAIChatModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			MaxRetries:     3,
			RetryDelay:     time.Second,
		})
	}
	ollama := func() *ai.OllamaProvider {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel)
	}

	reg.Register("gemini", func(context.Context) (ai.Provider, error) { return gemini(), nil })
	reg.Register("openai", func(context.Context) (ai.Provider, error) { return openai() })
	reg.Register("ollama", func(context.Context) (ai.Provider, error) { return ollama(), nil })
	reg.Register("openrouter", func(context.Context) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	reg.RegisterEmbedder("gemini", func(context.Context) (ai.Embedder, error) { return gemini(), nil })
	reg.RegisterEmbedder("openai", func(context.Context) (ai.Embedder, error) { return openai() })
	reg.RegisterEmbedder("ollama", func(context.Context) (ai.Embedder, error) { return ollama(), nil })
	return reg
}

func needsDB(cfg config.Config) bool {
	return cfg.VectorStore == "sql" || cfg.VectorStore == "pgvector" || cfg.EventsBackend != "none"
}

// Index is the vector index name used by every backend.
func Index(cfg config.Config) string {
	if cfg.PineconeIndexName != "" {
		return cfg.PineconeIndexName
	}
	return defaultIndex
}

// Build wires the RAG service and its collaborators. On error everything
// opened so far is closed.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{Cfg: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	reg := NewRegistry(cfg)
	provider, err := reg.Get(ctx, cfg.AIProvider)
	if err != nil {
		return nil, err
	}
	embedder, err := reg.Embedder(ctx, cfg.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	embedder = embedcache.New(embedder, a.cacheStore(ctx), log)

	if needsDB(cfg) {
		gdb, err := db.Open(cfg.DBDSN, !cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		a.DB = gdb
		a.closers = append(a.closers, func() error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		a.Audit = audit.NewRepo(gdb)
		if err := a.Audit.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate audit: %w", err)
		}
	}

	backend, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := a.publisher(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	svc, err := rag.NewService(rag.Deps{
		Session:   session.New(),
		Extractor: pdftext.NewPageExtractor(),
		Backend:   backend,
		Embedder:  embedder,
		Provider:  provider,
		Publisher: publisher,
		Logger:    log,
	}, rag.Config{
		Index:          Index(cfg),
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MaxConcurrency: cfg.EmbedMaxConcurrency,
		TopK:           cfg.RetrieverTopK,
	})
	if err != nil {
		return nil, err
	}
	a.RAG = svc
	return a, nil
}

func (a *App) cacheStore(ctx context.Context) embedcache.Store {
	if a.Cfg.RedisAddr == "" {
		return embedcache.NewMemoryStore(a.Cfg.EmbedCacheTTL)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.RedisAddr,
		Password: a.Cfg.RedisPassword,
		DB:       a.Cfg.RedisDB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		a.Log.Warn("app", "redis unavailable, using in-process embedding cache", map[string]any{
			"addr":  a.Cfg.RedisAddr,
			"error": err,
		})
		_ = rdb.Close()
		return embedcache.NewMemoryStore(a.Cfg.EmbedCacheTTL)
	}
	a.closers = append(a.closers, rdb.Close)
	return embedcache.NewRedisStore(rdb, a.Cfg.EmbedCacheTTL)
}

func (a *App) backend(ctx context.Context) (vectorstore.Backend, error) {
	switch a.Cfg.VectorStore {
	case "pinecone":
		return pinecone.New(pinecone.Config{APIKey: a.Cfg.PineconeAPIKey, Host: a.Cfg.PineconeIndexHost})
	case "pgvector":
		return pgvector.New(ctx, a.DB)
	case "sql":
		return sqlstore.New(a.DB)
	case "memory":
		return vectorstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported VECTOR_STORE=%q", a.Cfg.VectorStore)
	}
}

func (a *App) publisher(ctx context.Context) (events.Publisher, error) {
	switch a.Cfg.EventsBackend {
	case "rabbitmq":
		return rabbitmq.NewPublisher(a.Cfg.RabbitURL, a.Cfg.RabbitQueue)
	case "nats":
		return natsbus.Connect(ctx, a.Cfg.NatsURL)
	default:
		return events.Nop{}, nil
	}
}
