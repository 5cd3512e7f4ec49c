package schedule

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
)

var removeCmd = &cobra.Command{
	Use:   "remove <entity-id>",
	Short: "Remove a scheduled entity",
	Long: `Remove a scheduled entity.

You can find entity IDs using 'slotwise schedule show'.

Examples:
  slotwise schedule remove standup-0302`,
	Aliases: []string{"rm", "delete"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.RemoveEntityHandler == nil {
			return nil
		}

		if err := app.RemoveEntityHandler.Handle(cmd.Context(), commands.RemoveEntityCommand{ID: args[0]}); err != nil {
			return fmt.Errorf("failed to remove entity: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}
