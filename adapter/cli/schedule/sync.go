package schedule

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
)

var (
	syncFrom   string
	syncTo     string
	syncDays   int
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import events from the configured CalDAV calendar",
	Long: `Fetch events in a date range from CALDAV_URL and import them like an ICS file.

Examples:
  slotwise schedule sync
  slotwise schedule sync --days 14 --dry-run
  slotwise schedule sync --from 2026-03-02 --to 2026-03-06`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ImportCalendarHandler == nil {
			return nil
		}
		if app.CalDAV == nil {
			return fmt.Errorf("CalDAV is not configured; set CALDAV_URL, CALDAV_USERNAME and CALDAV_PASSWORD")
		}

		from, to, err := cli.ParseRange(syncFrom, syncTo, syncDays, app.Clock(), app.Loc())
		if err != nil {
			return err
		}

		source, err := app.CalDAV.Fetch(cmd.Context(), from, to)
		if err != nil {
			return fmt.Errorf("failed to fetch calendar: %w", err)
		}

		result, err := app.ImportCalendarHandler.Handle(cmd.Context(), commands.ImportCalendarCommand{
			Source: source,
			DryRun: syncDryRun,
		})
		if err != nil {
			return fmt.Errorf("failed to import calendar: %w", err)
		}
		return printImport(cmd, app, result, syncDryRun)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "first day (YYYY-MM-DD, default: today)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	syncCmd.Flags().IntVar(&syncDays, "days", 7, "days to fetch when --to is not set")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "fetch and report without saving")
}
