package ai

import (
	"context"
	"errors"
)

var (
	ErrEmptyPrompt    = errors.New("ai: prompt is empty")
	ErrProviderFailed = errors.New("ai: provider error")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Provider generates one complete reply for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns text into vectors. Documents and queries are embedded
// separately because some models use a different task type for each.
type Embedder interface {
	Model() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
