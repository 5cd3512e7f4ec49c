package schedule

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/security"
)

// maxCalendarBytes bounds ICS files read from disk.
const maxCalendarBytes = 32 << 20

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file.ics|->",
	Short: "Import calendar events from an ICS file",
	Long: `Import VEVENTs from an iCalendar file into scheduled entities. Use - to
read from stdin. Recurring, cancelled, transparent and all-day events are
skipped and listed.

Examples:
  slotwise schedule import work.ics
  slotwise schedule import work.ics --dry-run
  curl -s https://example.com/cal.ics | slotwise schedule import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ImportCalendarHandler == nil {
			return nil
		}

		var source io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := security.SafeOpen(args[0], maxCalendarBytes)
			if err != nil {
				return fmt.Errorf("open calendar: %w", err)
			}
			defer f.Close()
			source = f
		}

		result, err := app.ImportCalendarHandler.Handle(cmd.Context(), commands.ImportCalendarCommand{
			Source: source,
			DryRun: importDryRun,
		})
		if err != nil {
			return fmt.Errorf("failed to import calendar: %w", err)
		}

		return printImport(cmd, app, result, importDryRun)
	},
}

func printImport(cmd *cobra.Command, app *cli.App, result *commands.ImportCalendarResult, dryRun bool) error {
	if cli.JSONOutput() {
		return cli.PrintJSON(cmd, result)
	}

	out := cmd.OutOrStdout()
	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Fprintf(out, "%s %d events\n", verb, len(result.Imported))
	cli.Rule(cmd, 50)
	for _, e := range result.Imported {
		fmt.Fprintf(out, "  %s  %s\n", e.Interval.Start.In(app.Loc()).Format("Mon Jan 2 15:04"), e.Title)
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d events\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(out, "  %s (%s) %s\n", s.UID, s.Reason, s.Detail)
		}
	}
	return nil
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "parse and report without saving")
}
