package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/pdf-rag/internal/ai"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
	"github.com/suPer8Hu/pdf-rag/internal/pdftext"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
	"github.com/suPer8Hu/pdf-rag/internal/session"
	"github.com/suPer8Hu/pdf-rag/internal/vectorstore"
)

const pdfHeader = "%PDF-1.4\n"

// headerExtractor returns whatever follows the PDF header as one page.
type headerExtractor struct{}

func (headerExtractor) Extract(_ context.Context, data []byte) ([]pdftext.Segment, error) {
	text := strings.TrimPrefix(string(data), pdfHeader)
	if strings.TrimSpace(text) == "" {
		return nil, pdftext.ErrNoText
	}
	return []pdftext.Segment{{Page: 1, Text: text}}, nil
}

type letterEmbedder struct{}

func (letterEmbedder) Model() string { return "fake/letters" }

func letters(s string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letters(t)
	}
	return out, nil
}

func (letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return letters(text), nil
}

type stubProvider struct {
	err   error
	calls int
}

func (p *stubProvider) Chat(context.Context, []ai.Message) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return "Alpha is the first letter of the Greek alphabet.", nil
}

type env struct {
	router   *gin.Engine
	sess     *session.Session
	store    *vectorstore.Memory
	provider *stubProvider
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{sess: session.New(), store: vectorstore.NewMemory(), provider: &stubProvider{}}
	svc, err := rag.NewService(rag.Deps{
		Session:   e.sess,
		Extractor: headerExtractor{},
		Backend:   e.store,
		Embedder:  letterEmbedder{},
		Provider:  e.provider,
	}, rag.Config{Index: "pdf-index", ChunkSize: 100, ChunkOverlap: 20, TopK: 4})
	require.NoError(t, err)

	cfg := config.Config{UploadMaxBytes: 64 << 10}
	e.router, err = NewRouter(cfg, svc, nil, logger.Nop())
	require.NoError(t, err)
	return e
}

func (e *env) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func askRequest(question string) *http.Request {
	form := url.Values{}
	if question != "" {
		form.Set("question", question)
	}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func samplePDF() []byte {
	return []byte(pdfHeader + strings.Repeat("Alpha Beta Gamma Delta. ", 20))
}

func TestEndToEnd_UploadThenAsk(t *testing.T) {
	e := newEnv(t)

	w := e.do(uploadRequest(t, "pdfFile", "sample.pdf", "application/pdf", samplePDF()))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/chat", w.Header().Get("Location"))

	ns, ok := e.sess.Namespace()
	require.True(t, ok)
	assert.Greater(t, e.store.Len("pdf-index", ns), 1)
	tr := e.sess.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, session.RoleSystem, tr[0].Role)

	w = e.do(askRequest("What is Alpha?"))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	tr = e.sess.Transcript()
	require.Len(t, tr, 3)
	assert.Equal(t, session.RoleUser, tr[1].Role)
	assert.Equal(t, "What is Alpha?", tr[1].Content)
	assert.Equal(t, session.RoleAI, tr[2].Role)
	assert.NotEmpty(t, tr[2].Content)

	w = e.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "What is Alpha?")
	assert.Contains(t, w.Body.String(), rag.MsgProcessed)
}

func TestAsk_FreshSession(t *testing.T) {
	e := newEnv(t)

	w := e.do(askRequest("What is Alpha?"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, e.sess.Transcript())
	assert.Zero(t, e.provider.calls)
}

func TestAsk_MissingQuestion(t *testing.T) {
	e := newEnv(t)
	e.sess.Reset("ns")

	w := e.do(askRequest(""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.sess.Len())
}

func TestAsk_GenerationFailureStillRedirects(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusSeeOther, e.do(uploadRequest(t, "pdfFile", "sample.pdf", "application/pdf", samplePDF())).Code)
	e.provider.err = errors.New("upstream timeout")

	w := e.do(askRequest("What is Alpha?"))
	assert.Equal(t, http.StatusSeeOther, w.Code)

	tr := e.sess.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, session.RoleSystem, tr[1].Role)
	assert.Equal(t, rag.MsgQueryFailed, tr[1].Content)
}

func TestUpload_Rejections(t *testing.T) {
	cases := []struct {
		name string
		req  func(t *testing.T) *http.Request
		code int
	}{
		{
			name: "not a pdf",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "pdfFile", "notes.txt", "text/plain", []byte("Alpha Beta"))
			},
			code: http.StatusUnsupportedMediaType,
		},
		{
			name: "declared pdf but plain bytes",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "pdfFile", "fake.pdf", "application/pdf", []byte("Alpha Beta"))
			},
			code: http.StatusUnsupportedMediaType,
		},
		{
			name: "wrong field",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "document", "sample.pdf", "application/pdf", samplePDF())
			},
			code: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
			},
			code: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				big := append([]byte(pdfHeader), bytes.Repeat([]byte("a"), 65<<10)...)
				return uploadRequest(t, "pdfFile", "big.pdf", "application/pdf", big)
			},
			code: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			w := e.do(tc.req(t))
			assert.Equal(t, tc.code, w.Code, w.Body.String())
			_, ok := e.sess.Namespace()
			assert.False(t, ok)
			assert.Empty(t, e.sess.Transcript())
		})
	}
}

func TestUpload_NoTextIs500(t *testing.T) {
	e := newEnv(t)

	w := e.do(uploadRequest(t, "pdfFile", "blank.pdf", "application/pdf", []byte(pdfHeader+"   ")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Failed to process PDF: "))
	assert.Contains(t, w.Body.String(), pdftext.ErrNoText.Error())
	assert.Empty(t, e.sess.Transcript())
}

func TestAPI_TranscriptAndHealth(t *testing.T) {
	e := newEnv(t)
	e.sess.Reset("ns-1", session.NewMessage(session.RoleSystem, rag.MsgProcessed))

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/transcript", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data struct {
			DocumentLoaded bool              `json:"document_loaded"`
			Namespace      string            `json:"namespace"`
			Messages       []session.Message `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.DocumentLoaded)
	assert.Equal(t, "ns-1", resp.Data.Namespace)
	require.Len(t, resp.Data.Messages, 1)

	w = e.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/ingestions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPagesAndFallbacks(t *testing.T) {
	e := newEnv(t)

	w := e.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="pdfFile"`)

	w = e.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(httptest.NewRequest(http.MethodDelete, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
