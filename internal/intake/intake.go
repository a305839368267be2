package intake

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

const (
	FieldName       = "pdfFile"
	PDFMediaType    = "application/pdf"
	DefaultMaxBytes = 20 << 20
)

var (
	ErrNoFile   = errors.New("no file uploaded")
	ErrNotPDF   = errors.New("only PDF files are allowed")
	ErrTooLarge = errors.New("file exceeds upload limit")
)

// Upload is an accepted PDF held in memory for the duration of one request.
type Upload struct {
	Filename string
	Data     []byte
}

// Accept validates one multipart file part and reads it into memory.
// The declared media type must be application/pdf and the bytes must sniff
// as a PDF; nothing is written to disk.
func Accept(fh *multipart.FileHeader, maxBytes int64) (Upload, error) {
	if fh == nil {
		return Upload{}, ErrNoFile
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if fh.Size > maxBytes {
		return Upload{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, fh.Size, maxBytes)
	}

	declared, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil || declared != PDFMediaType {
		return Upload{}, fmt.Errorf("%w: got %q", ErrNotPDF, fh.Header.Get("Content-Type"))
	}

	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return Read(fh.Filename, f, maxBytes)
}

// Read loads at most maxBytes from r and checks that the content sniffs as
// a PDF. The CLI uses it for files on disk.
func Read(filename string, r io.Reader, maxBytes int64) (Upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	// read one byte past the limit so a lying Size header is still caught
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Upload{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}

	if !mimetype.Detect(data).Is(PDFMediaType) {
		return Upload{}, fmt.Errorf("%w: content is not a PDF", ErrNotPDF)
	}

	return Upload{Filename: filename, Data: data}, nil
}
