package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

func baseConfig() config.Config {
	return config.Config{
		Environment:          "test",
		AIProvider:           "ollama",
		EmbeddingProvider:    "ollama",
		OllamaBaseURL:        "http://localhost:11434",
		OllamaModel:          "llama3:latest",
		OllamaEmbeddingModel: "nomic-embed-text",
		VectorStore:          "memory",
		DBDSN:                "file::memory:",
		ChunkSize:            1000,
		ChunkOverlap:         200,
		EmbedMaxConcurrency:  5,
		RetrieverTopK:        4,
		UploadMaxBytes:       20 << 20,
		EventsBackend:        "none",
	}
}

func TestBuild_MemoryStore(t *testing.T) {
	a, err := Build(context.Background(), baseConfig(), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.RAG)
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Audit)
	_, active := a.RAG.Session().Namespace()
	assert.False(t, active)
}

func TestBuild_SQLStoreOpensDatabase(t *testing.T) {
	cfg := baseConfig()
	cfg.VectorStore = "sql"

	a, err := Build(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.DB)
	require.NotNil(t, a.Audit)
	assert.True(t, a.DB.Migrator().HasTable("chunk_vectors"))
	assert.True(t, a.DB.Migrator().HasTable("ingestion_records"))
}

func TestBuild_UnknownProvider(t *testing.T) {
	cfg := baseConfig()
	cfg.AIProvider = "nope"

	_, err := Build(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

func TestBuild_OpenAIRequiresKey(t *testing.T) {
	cfg := baseConfig()
	cfg.EmbeddingProvider = "openai"

	_, err := Build(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

func TestNewRegistry_AllBackends(t *testing.T) {
	cfg := baseConfig()
	cfg.OpenAIAPIKey = "sk-test"
	reg := NewRegistry(cfg)
	ctx := context.Background()

	for _, name := range []string{"gemini", "openai", "ollama", "openrouter"} {
		p, err := reg.Get(ctx, name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	for _, name := range []string{"gemini", "openai", "ollama"} {
		e, err := reg.Embedder(ctx, name)
		require.NoError(t, err, name)
		assert.Implements(t, (*ai.Embedder)(nil), e)
	}
}

func TestIndex(t *testing.T) {
	cfg := baseConfig()
	assert.Equal(t, "pdfrag", Index(cfg))
	cfg.PineconeIndexName = "docs"
	assert.Equal(t, "docs", Index(cfg))
}
