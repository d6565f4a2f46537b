package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newResumeCmd creates the 'resume' subcommand, which continues an
// interrupted harvest session.
func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resumes an interrupted harvest session",
		Long: `Reprocesses only the documents the given session has not completed.
Session counters accumulate across resumes; completed sessions are
rejected.`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}

			o, err := buildHarvestOrchestrator(app, app.cfg)
			if err != nil {
				return err
			}

			sess, err := o.Resume(cmd.Context(), id)
			if sess.ID != uuid.Nil {
				fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("resume: %w", err)
			}
			return nil
		},
	}
}
