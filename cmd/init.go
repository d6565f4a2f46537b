package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/storage/postgres"
)

// newInitCmd creates the 'init' subcommand, which applies the database
// schema. Safe to run repeatedly; all DDL is idempotent.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Creates the database schema",
		Long: `Applies the sessions, documents, attachments, and document_features
tables along with their indexes. Existing tables are left untouched.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := postgres.Migrate(cmd.Context(), app.pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			app.logger.Info("Database schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}
