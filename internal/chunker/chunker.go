package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/pdf-rag/internal/pdftext"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var ErrInvalidParams = errors.New("chunker: invalid size/overlap")

// Chunk is one window of page text, numbered in document order.
type Chunk struct {
	Index int
	Page  int
	Text  string
}

// Splitter cuts text into fixed windows of Size runes, each starting
// Size-Overlap runes after the previous one.
type Splitter struct {
	Size    int
	Overlap int
}

func New(size, overlap int) (*Splitter, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParams, size, overlap)
	}
	return &Splitter{Size: size, Overlap: overlap}, nil
}

// Split is deterministic: same text and parameters give the same boundaries.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return nil
	}
	if total <= s.Size {
		return []string{text}
	}

	step := s.Size - s.Overlap
	var chunks []string
	for i := 0; i < total; i += step {
		end := i + s.Size
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == total {
			break
		}
	}
	return chunks
}

// SplitSegments splits every page separately, skipping blank pages, and
// numbers the resulting chunks across the whole document.
func (s *Splitter) SplitSegments(segments []pdftext.Segment) []Chunk {
	var out []Chunk
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		for _, text := range s.Split(seg.Text) {
			out = append(out, Chunk{Index: len(out), Page: seg.Page, Text: text})
		}
	}
	return out
}
