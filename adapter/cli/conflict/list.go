package conflict

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Detect constraint violations in the schedule",
	Long: `Audit stored entities for double bookings, attendee clashes, work
outside business hours and overlong entities.

Examples:
  slotwise conflicts list
  slotwise conflicts list --from 2026-03-02 --to 2026-03-06`,
	Aliases: []string{"ls", "detect"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.DetectConflictsHandler == nil || app.Defaults == nil {
			return nil
		}

		window, err := auditWindow(app)
		if err != nil {
			return err
		}

		result, err := app.DetectConflictsHandler.Handle(cmd.Context(), queries.DetectConflictsQuery{
			Range:  window,
			Config: app.Defaults.DetectorConfig(),
		})
		if err != nil {
			return fmt.Errorf("failed to detect conflicts: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		if len(result.Violations) == 0 {
			fmt.Fprintf(out, "No conflicts across %d entities.\n", result.EntitiesScanned)
			return nil
		}
		fmt.Fprintf(out, "%d violations (%d hard) across %d entities\n",
			len(result.Violations), result.HardCount, result.EntitiesScanned)
		cli.Rule(cmd, 60)
		for i, v := range result.Violations {
			printViolation(cmd, app.Loc(), i+1, v)
		}
		return nil
	},
}
