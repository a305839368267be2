package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNoText means the PDF parsed but carries no text layer (e.g. scanned pages).
	ErrNoText = errors.New("pdf: no extractable text")
	ErrParse  = errors.New("pdf: cannot parse document")
)

// Segment is the text of one page.
type Segment struct {
	Page int
	Text string
}

type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]Segment, error)
}

// PageExtractor reads the PDF from memory and returns one segment per page
// that has non-blank text, in page order.
type PageExtractor struct{}

func NewPageExtractor() *PageExtractor {
	return &PageExtractor{}
}

func (e *PageExtractor) Extract(ctx context.Context, data []byte) (segments []Segment, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrParse, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, Segment{Page: i, Text: text})
	}

	if len(segments) == 0 {
		return nil, ErrNoText
	}
	return segments, nil
}
