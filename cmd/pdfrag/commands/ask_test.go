package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suPer8Hu/pdf-rag/internal/intake"
)

// onePagePDF writes a minimal PDF whose only page shows text.
func onePagePDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// fakeOllama answers /api/embed with fixed vectors and /api/chat with a
// canned reply.
func fakeOllama(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			var req struct {
				Input []string `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			vecs := make([][]float32, len(req.Input))
			for i := range vecs {
				vecs[i] = []float32{1, 0, 0}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
		case "/api/chat":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": reply},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setTestEnv(t *testing.T, ollamaURL string) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("AI_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("OLLAMA_BASE_URL", ollamaURL)
	t.Setenv("VECTOR_STORE", "memory")
	t.Setenv("EVENTS_BACKEND", "none")
	t.Setenv("REDIS_ADDR", "")
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestAsk_WithFile(t *testing.T) {
	srv := fakeOllama(t, "Alpha comes first.")
	setTestEnv(t, srv.URL)
	path := writeFile(t, "greek.pdf", onePagePDF("Alpha Beta Gamma"))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--quiet", "ask", "--file", path, "What", "is", "Alpha?"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, out.String())
	}
	if got := strings.TrimSpace(out.String()); got != "Alpha comes first." {
		t.Errorf("output = %q, want the model reply", got)
	}
}

func TestIngest_PrintsNamespace(t *testing.T) {
	srv := fakeOllama(t, "unused")
	setTestEnv(t, srv.URL)
	path := writeFile(t, "greek.pdf", onePagePDF("Alpha Beta Gamma"))

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"-q", "ingest", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, out.String())
	}
	for _, want := range []string{"Namespace: ", "Pages:     1", "Chunks:    1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q, got:\n%s", want, out.String())
		}
	}
}

func TestReadPDF(t *testing.T) {
	up, err := readPDF(writeFile(t, "a.pdf", onePagePDF("Alpha")), 0)
	if err != nil {
		t.Fatalf("readPDF() error = %v", err)
	}
	if up.Filename != "a.pdf" {
		t.Errorf("Filename = %q, want %q", up.Filename, "a.pdf")
	}

	_, err = readPDF(writeFile(t, "notes.txt", []byte("just text")), 0)
	if err == nil || !strings.Contains(err.Error(), intake.ErrNotPDF.Error()) {
		t.Errorf("readPDF(text) error = %v, want ErrNotPDF", err)
	}

	if _, err := readPDF(filepath.Join(t.TempDir(), "missing.pdf"), 0); err == nil {
		t.Error("readPDF(missing) should fail")
	}
}
