package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/pdf-rag/internal/app"
	"github.com/suPer8Hu/pdf-rag/internal/rag"
)

var (
	askNamespace string
	askFile      string
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about an ingested PDF",
		Long: `Answer a question from a previously ingested namespace, or ingest a
file first and ask against it in the same run.

Examples:
  pdfrag ask --namespace 6f1c... "What is the refund policy?"
  pdfrag ask --file report.pdf "Summarize section 2"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askNamespace, "namespace", "", "Namespace printed by ingest")
	cmd.Flags().StringVar(&askFile, "file", "", "Ingest this PDF before asking")
	cmd.MarkFlagsMutuallyExclusive("namespace", "file")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("no question provided")
	}
	if askNamespace == "" && askFile == "" {
		return errors.New("one of --namespace or --file is required")
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.Build(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	defer a.Close()

	if askFile != "" {
		up, err := readPDF(askFile, cfg.UploadMaxBytes)
		if err != nil {
			return err
		}
		if _, err := a.RAG.Ingest(cmd.Context(), up); err != nil {
			return fmt.Errorf("ingesting %s: %w", up.Filename, err)
		}
	} else {
		a.RAG.Session().Reset(askNamespace)
	}

	answer, err := a.RAG.Ask(cmd.Context(), question)
	if err != nil {
		if errors.Is(err, rag.ErrQueryFailed) {
			return fmt.Errorf("%s: %w", rag.MsgQueryFailed, err)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
