package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"

	// batchEmbedContents accepts at most 100 requests per call
	geminiMaxBatch = 100
)

// GeminiProvider implements Provider and Embedder against the Gemini REST API.
type GeminiProvider struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Client         *http.Client
}

func NewGeminiProvider(apiKey, chatModel, embeddingModel string) *GeminiProvider {
	if chatModel == "" {
		chatModel = "gemini-1.5-flash-latest"
	}
	if embeddingModel == "" {
		embeddingModel = "embedding-001"
	}
	return &GeminiProvider{
		BaseURL:        geminiBaseURL,
		APIKey:         apiKey,
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
		Client:         &http.Client{Timeout: 90 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiEmbedReq struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiBatchEmbedReq struct {
	Requests []geminiEmbedReq `json:"requests"`
}

type geminiBatchEmbedResp struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (g *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyPrompt
	}

	var req geminiGenerateReq
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case RoleAssistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	var resp geminiGenerateResp
	if err := g.post(ctx, fmt.Sprintf("models/%s:generateContent", g.ChatModel), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: gemini: empty response", ErrProviderFailed)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

func (g *GeminiProvider) Model() string { return "gemini/" + g.EmbeddingModel }

func (g *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := start + geminiMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := g.batchEmbed(ctx, texts[start:end], taskRetrievalDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (g *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.batchEmbed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *GeminiProvider) batchEmbed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	model := "models/" + g.EmbeddingModel
	req := geminiBatchEmbedReq{Requests: make([]geminiEmbedReq, len(texts))}
	for i, t := range texts {
		req.Requests[i] = geminiEmbedReq{
			Model:    model,
			Content:  geminiContent{Parts: []geminiPart{{Text: t}}},
			TaskType: taskType,
		}
	}

	var resp geminiBatchEmbedResp
	if err := g.post(ctx, model+":batchEmbedContents", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: gemini: got %d embeddings for %d inputs", ErrProviderFailed, len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (g *GeminiProvider) post(ctx context.Context, path string, body, out any) error {
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("%w: gemini: api key is required", ErrProviderFailed)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", strings.TrimRight(g.BaseURL, "/"), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	res, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: send request: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gemini: status %d: %s", ErrProviderFailed, res.StatusCode, strings.TrimSpace(string(resBody)))
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("gemini: parse response: %w", err)
	}
	return nil
}
