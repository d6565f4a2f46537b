package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newStatusCmd creates the 'status' subcommand, which prints a session
// snapshot as JSON.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Shows the current state of a session",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q: %w", args[0], err)
			}

			sess, err := app.sessions.Status(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}

			out, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
