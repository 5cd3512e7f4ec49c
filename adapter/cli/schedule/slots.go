package schedule

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var (
	slotsFrom     string
	slotsTo       string
	slotsDuration int
	slotsLimit    int
	slotsWeekends bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Find available time slots",
	Long: `Find free windows inside working hours that fit a duration.

Examples:
  slotwise schedule slots
  slotwise schedule slots --duration 90
  slotwise schedule slots --from 2026-03-02 --to 2026-03-06 --limit 5`,
	Aliases: []string{"available", "free"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.FindAvailableSlotsHandler == nil || app.Defaults == nil {
			return nil
		}
		if slotsDuration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}

		from, to, err := cli.ParseRange(slotsFrom, slotsTo, 1, app.Clock(), app.Loc())
		if err != nil {
			return err
		}

		cfg := app.Defaults.SlotFinderConfig()
		if slotsWeekends {
			cfg.IncludeWeekends = true
		}

		slots, err := app.FindAvailableSlotsHandler.Handle(cmd.Context(), queries.FindAvailableSlotsQuery{
			Start:    from,
			End:      to,
			Duration: time.Duration(slotsDuration) * time.Minute,
			Config:   cfg,
			Limit:    slotsLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to find available slots: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, slots)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Available slots of at least %d minutes\n", slotsDuration)
		cli.Rule(cmd, 50)

		if len(slots) == 0 {
			fmt.Fprintln(out, "\n  No available slots found.")
			return nil
		}

		totalAvailable := 0
		for _, slot := range slots {
			start := slot.Start.In(app.Loc())
			fmt.Fprintf(out, "  %s  %s - %s  (%s available)\n",
				start.Format("Mon Jan 2"),
				start.Format("15:04"),
				slot.End.In(app.Loc()).Format("15:04"),
				cli.FormatDuration(time.Duration(slot.DurationMin)*time.Minute),
			)
			totalAvailable += slot.DurationMin
		}

		cli.Rule(cmd, 50)
		fmt.Fprintf(out, "Total: %d slots, %s available\n", len(slots), cli.FormatDuration(time.Duration(totalAvailable)*time.Minute))
		return nil
	},
}

func init() {
	slotsCmd.Flags().StringVar(&slotsFrom, "from", "", "first day (YYYY-MM-DD, default: today)")
	slotsCmd.Flags().StringVar(&slotsTo, "to", "", "last day, inclusive (YYYY-MM-DD)")
	slotsCmd.Flags().IntVarP(&slotsDuration, "duration", "m", 30, "minimum slot duration in minutes")
	slotsCmd.Flags().IntVar(&slotsLimit, "limit", 0, "maximum number of slots (0 = all)")
	slotsCmd.Flags().BoolVar(&slotsWeekends, "weekends", false, "include Saturdays and Sundays")
}
