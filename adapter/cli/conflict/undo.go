package conflict

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var tokensLimit int

var undoCmd = &cobra.Command{
	Use:   "undo <token-id>",
	Short: "Undo an applied remediation",
	Long: `Restore the entities an applied remediation changed. Entities edited
since the apply are left alone and reported as stale.

Examples:
  slotwise conflicts undo 6f1c2a9e-...`,
	Aliases: []string{"rollback"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.UndoSolutionHandler == nil {
			return nil
		}

		result, err := app.UndoSolutionHandler.Handle(cmd.Context(), commands.UndoSolutionCommand{TokenID: args[0]})
		if err != nil {
			return fmt.Errorf("failed to undo: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		switch {
		case result.AlreadyUndone:
			fmt.Fprintln(out, "Already undone.")
		case result.Partial:
			fmt.Fprintf(out, "Partially undone: restored %d, skipped %d stale\n",
				len(result.RestoredEntityIDs), len(result.StaleEntityIDs))
			for _, s := range result.Stale {
				fmt.Fprintf(out, "  %s: %s\n", s.EntityID, s.Reason)
			}
		default:
			fmt.Fprintf(out, "Restored %d entities.\n", len(result.RestoredEntityIDs))
		}
		return nil
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List recent rollback tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ListRollbackTokensHandler == nil {
			return nil
		}

		tokens, err := app.ListRollbackTokensHandler.Handle(cmd.Context(), queries.ListRollbackTokensQuery{Limit: tokensLimit})
		if err != nil {
			return fmt.Errorf("failed to list rollback tokens: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, tokens)
		}

		out := cmd.OutOrStdout()
		if len(tokens) == 0 {
			fmt.Fprintln(out, "No rollback tokens.")
			return nil
		}
		for _, t := range tokens {
			state := "active"
			if t.Undone {
				state = "undone"
			}
			fmt.Fprintf(out, "  %s  %s  %-6s  %d entities\n", t.ID, t.CreatedAt, state, len(t.EntityIDs))
		}
		return nil
	},
}

func init() {
	tokensCmd.Flags().IntVar(&tokensLimit, "limit", queries.DefaultTokenListLimit, "maximum tokens to list")
}
