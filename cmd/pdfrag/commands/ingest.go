package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/pdf-rag/internal/app"
	"github.com/suPer8Hu/pdf-rag/internal/intake"
)

func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Embed a PDF into the vector store",
		Long: `Embed a PDF into the configured vector store and print its namespace.

The namespace can be passed to "pdfrag ask --namespace" later. With
VECTOR_STORE=memory the vectors are gone when the command exits.

Examples:
  pdfrag ingest report.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	up, err := readPDF(args[0], cfg.UploadMaxBytes)
	if err != nil {
		return err
	}

	a, err := app.Build(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	defer a.Close()

	res, err := a.RAG.Ingest(cmd.Context(), up)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", up.Filename, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Namespace: %s\n", res.Namespace)
	fmt.Fprintf(out, "Pages:     %d\n", res.Pages)
	fmt.Fprintf(out, "Chunks:    %d\n", res.Chunks)
	return nil
}

func readPDF(path string, maxBytes int64) (intake.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return intake.Upload{}, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	up, err := intake.Read(filepath.Base(path), f, maxBytes)
	if err != nil {
		return intake.Upload{}, fmt.Errorf("%s: %w", path, err)
	}
	return up, nil
}
