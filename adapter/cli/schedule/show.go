package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var (
	showFrom string
	showTo   string
	showAll  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show scheduled entities",
	Long: `Display scheduled entities for today, a date range, or everything.

Examples:
  slotwise schedule show
  slotwise schedule show --from 2026-03-02 --to 2026-03-06
  slotwise schedule show --all`,
	Aliases: []string{"list", "ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ListEntitiesHandler == nil {
			return nil
		}

		var query queries.ListEntitiesQuery
		if !showAll {
			from, to, err := cli.ParseRange(showFrom, showTo, 1, app.Clock(), app.Loc())
			if err != nil {
				return err
			}
			query = queries.ListEntitiesQuery{From: from, To: to}
		}

		entities, err := app.ListEntitiesHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, entities)
		}

		out := cmd.OutOrStdout()
		if len(entities) == 0 {
			fmt.Fprintln(out, "No scheduled entities.")
			return nil
		}

		var day string
		for _, e := range entities {
			start := e.Interval.Start.In(app.Loc())
			if d := start.Format("Monday, January 2, 2006"); d != day {
				day = d
				fmt.Fprintf(out, "\n%s\n", day)
				fmt.Fprintln(out, strings.Repeat("=", 60))
			}
			fmt.Fprintf(out, "  %s - %s  [%s] P%d  %s\n",
				start.Format("15:04"),
				e.Interval.End.In(app.Loc()).Format("15:04"),
				e.Category, e.Priority, e.Title)
			fmt.Fprintf(out, "      id: %s", e.ID)
			if len(e.ResourceRefs) > 0 {
				fmt.Fprintf(out, "  resources: %s", strings.Join(e.ResourceRefs, ","))
			}
			if len(e.Attendees) > 0 {
				fmt.Fprintf(out, "  attendees: %d", len(e.Attendees))
			}
			fmt.Fprintln(out)
		}

		total := time.Duration(0)
		for _, e := range entities {
			total += e.Interval.Duration()
		}
		fmt.Fprintln(out)
		cli.Rule(cmd, 60)
		fmt.Fprintf(out, "Total: %d entities, %s scheduled\n", len(entities), cli.FormatDuration(total))
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showFrom, "from", "", "first day (YYYY-MM-DD, default: today)")
	showCmd.Flags().StringVar(&showTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	showCmd.Flags().BoolVar(&showAll, "all", false, "show every stored entity")
}
