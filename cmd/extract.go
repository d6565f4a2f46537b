package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/extract"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/orchestrator"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/pdftext"
)

// newExtractCmd creates the 'extract' subcommand, which runs LLM
// feature extraction over downloaded documents that have no feature
// record yet.
func newExtractCmd() *cobra.Command {
	var (
		productFilter string
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extracts structured regulatory features from harvested documents",
		Long: `Pulls text from stored PDF attachments and runs structured feature
extraction through the configured model. Only completed documents
without an existing feature record are processed; failed extractions
are recorded and not retried on later runs.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			model, err := extract.NewGeminiModel(cmd.Context(), app.cfg.Extraction.Model, app.cfg.Extraction.APIKey)
			if err != nil {
				return fmt.Errorf("init model: %w", err)
			}
			defer func() {
				if cerr := model.Close(); cerr != nil {
					app.logger.Warn("Failed to close model client", zap.Error(cerr))
				}
			}()

			text := pdftext.New(app.cfg.Extraction.MaxPages, app.cfg.Extraction.MaxTextChars)
			stage, err := extract.NewStage(app.features, app.sessions, text, model, app.cfg.Extraction, app.logger.Named("extract"))
			if err != nil {
				return fmt.Errorf("init extraction stage: %w", err)
			}

			o := orchestrator.New(app.cfg, nil, app.docs, app.sessions, nil, stage, app.logger.Named("orchestrator"))

			sess, err := o.Extract(cmd.Context(), productFilter, limit)
			if sess.ID != uuid.Nil {
				fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("extract: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&productFilter, "product-filter", "", "only extract documents whose title, topic, or organization matches")
	cmd.Flags().IntVar(&limit, "limit", 0, "process at most N documents (0 = all)")

	return cmd
}
