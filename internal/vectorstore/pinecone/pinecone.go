// Package pinecone is a minimal REST client for a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

const (
	controlPlaneURL = "https://api.pinecone.io"
	apiVersion      = "2024-07"
	upsertBatch     = 100

	metaText  = "text"
	metaPage  = "page"
	metaIndex = "chunk_index"
)

type Config struct {
	APIKey string
	// Host is the data-plane host of the index. When empty it is looked up
	// from the control plane on first use.
	Host            string
	ControlPlaneURL string
	Timeout         time.Duration
}

type Client struct {
	apiKey       string
	controlPlane string
	client       *http.Client

	mu    sync.Mutex
	hosts map[string]string
	host  string
}

var _ vectorstore.Backend = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cp := cfg.ControlPlaneURL
	if cp == "" {
		cp = controlPlaneURL
	}
	return &Client{
		apiKey:       cfg.APIKey,
		controlPlane: strings.TrimRight(cp, "/"),
		client:       &http.Client{Timeout: timeout},
		hosts:        make(map[string]string),
		host:         normalizeHost(cfg.Host),
	}, nil
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return h
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertReq struct {
	Vectors   []vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type queryReq struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResp struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

func (c *Client) Upsert(ctx context.Context, index, namespace string, recs []vectorstore.Record) error {
	host, err := c.resolveHost(ctx, index)
	if err != nil {
		return err
	}
	for start := 0; start < len(recs); start += upsertBatch {
		end := min(start+upsertBatch, len(recs))
		body := upsertReq{Namespace: namespace, Vectors: make([]vector, 0, end-start)}
		for _, r := range recs[start:end] {
			body.Vectors = append(body.Vectors, vector{
				ID:     r.ID,
				Values: r.Values,
				Metadata: map[string]any{
					metaText:  r.Text,
					metaPage:  r.Page,
					metaIndex: r.Index,
				},
			})
		}
		if err := c.do(ctx, http.MethodPost, host+"/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
	}
	return nil
}

func (c *Client) Query(ctx context.Context, index, namespace string, v []float32, topK int) ([]vectorstore.Match, error) {
	host, err := c.resolveHost(ctx, index)
	if err != nil {
		return nil, err
	}
	var resp queryResp
	req := queryReq{Namespace: namespace, Vector: v, TopK: topK, IncludeMetadata: true}
	if err := c.do(ctx, http.MethodPost, host+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	out := make([]vectorstore.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		rec := vectorstore.Record{ID: m.ID}
		if s, ok := m.Metadata[metaText].(string); ok {
			rec.Text = s
		}
		// JSON numbers decode as float64
		if f, ok := m.Metadata[metaPage].(float64); ok {
			rec.Page = int(f)
		}
		if f, ok := m.Metadata[metaIndex].(float64); ok {
			rec.Index = int(f)
		}
		out = append(out, vectorstore.Match{Record: rec, Score: m.Score})
	}
	return out, nil
}

func (c *Client) resolveHost(ctx context.Context, index string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != "" {
		return c.host, nil
	}
	if h, ok := c.hosts[index]; ok {
		return h, nil
	}
	if index == "" {
		return "", errors.New("pinecone: index name is required")
	}

	var desc struct {
		Host string `json:"host"`
	}
	if err := c.do(ctx, http.MethodGet, c.controlPlane+"/indexes/"+index, nil, &desc); err != nil {
		return "", fmt.Errorf("pinecone describe index %q: %w", index, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("pinecone describe index %q: empty host", index)
	}
	h := normalizeHost(desc.Host)
	c.hosts[index] = h
	return h, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
