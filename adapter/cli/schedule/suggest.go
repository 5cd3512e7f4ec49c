package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

var (
	suggestDuration  int
	suggestCategory  string
	suggestPriority  int
	suggestDeadline  string
	suggestWindows   []string
	suggestFlexible  bool
	suggestResources []string
	suggestAttendees []string
	suggestBook      bool
	suggestHorizon   int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <title>",
	Short: "Rank placements for new work",
	Long: `Rank candidate placements for a new item against the current schedule.

Windows are given as YYYY-MM-DDTHH:MM/HH:MM in the configured time zone.

Examples:
  slotwise schedule suggest "Write report" --duration 60
  slotwise schedule suggest "1:1 with Ana" --duration 30 --category meeting --attendee ana@example.com
  slotwise schedule suggest "Planning" --duration 90 --window 2026-03-03T13:00/17:00 --flexible
  slotwise schedule suggest "Expense report" --duration 30 --deadline 2026-03-04T12:00 --book`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.SuggestPlacementHandler == nil || app.Defaults == nil {
			return nil
		}

		req := domain.SchedulingRequest{
			Title:           strings.Join(args, " "),
			DurationMinutes: suggestDuration,
			Category:        domain.Category(strings.ToLower(suggestCategory)),
			Priority:        suggestPriority,
			Flexible:        suggestFlexible,
			ResourceRefs:    suggestResources,
			Attendees:       suggestAttendees,
		}
		if suggestDeadline != "" {
			deadline, err := time.ParseInLocation("2006-01-02T15:04", suggestDeadline, app.Loc())
			if err != nil {
				return fmt.Errorf("invalid deadline, use YYYY-MM-DDTHH:MM: %w", err)
			}
			req.Deadline = &deadline
		}
		for _, raw := range suggestWindows {
			w, err := parseWindow(raw, app.Loc())
			if err != nil {
				return err
			}
			req.PreferredWindows = append(req.PreferredWindows, w)
		}

		opts := app.Defaults.ScheduleOptions(app.Clock())
		if suggestHorizon > 0 {
			opts.HorizonDays = suggestHorizon
		}

		result, err := app.SuggestPlacementHandler.Handle(cmd.Context(), commands.SuggestPlacementCommand{
			Request: req,
			Options: opts,
			Book:    suggestBook,
		})
		if err != nil {
			return fmt.Errorf("failed to suggest placement: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		if len(result.ValidationErrors) > 0 {
			fmt.Fprintln(out, "Request is invalid:")
			for _, v := range result.ValidationErrors {
				fmt.Fprintf(out, "  %s: %s\n", v.Field, v.Message)
			}
			return fmt.Errorf("invalid scheduling request")
		}
		if !result.Success {
			fmt.Fprintf(out, "No placement found for %q (%d candidates evaluated)\n", req.Title, result.Evaluated)
			for _, c := range result.Conflicts {
				fmt.Fprintf(out, "  %s rejected %d: %s\n", c.Constraint, c.Rejected, c.Message)
			}
			return nil
		}

		fmt.Fprintf(out, "Suggestions for %q (%s)\n", req.Title, cli.FormatDuration(req.Duration()))
		cli.Rule(cmd, 60)
		for i, c := range result.Suggestions {
			printCandidate(cmd, app.Loc(), fmt.Sprintf("%d.", i+1), c)
		}
		if len(result.AlternativeOptions) > 0 {
			fmt.Fprintln(out, "\nAlternatives")
			for _, c := range result.AlternativeOptions {
				printCandidate(cmd, app.Loc(), "-", c)
			}
		}
		if result.Booked != nil {
			cli.Rule(cmd, 60)
			fmt.Fprintf(out, "Booked %s at %s (id %s)\n", result.Booked.Title,
				result.Booked.Interval.Start.In(app.Loc()).Format("Mon Jan 2 15:04"), result.Booked.ID)
		}
		return nil
	},
}

func printCandidate(cmd *cobra.Command, loc *time.Location, marker string, c domain.Candidate) {
	start := c.Slot.Start.In(loc)
	fmt.Fprintf(cmd.OutOrStdout(), "  %-3s %s %s - %s  score %3d",
		marker, start.Format("Mon Jan 2"), start.Format("15:04"), c.Slot.End.In(loc).Format("15:04"), c.Score)
	if cli.Verbose() && len(c.Reasoning) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  (%s)", strings.Join(c.Reasoning, "; "))
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

// parseWindow reads YYYY-MM-DDTHH:MM/HH:MM.
func parseWindow(raw string, loc *time.Location) (domain.TimeInterval, error) {
	startRaw, endClock, ok := strings.Cut(raw, "/")
	if !ok {
		return domain.TimeInterval{}, fmt.Errorf("invalid window %q, use YYYY-MM-DDTHH:MM/HH:MM", raw)
	}
	start, err := time.ParseInLocation("2006-01-02T15:04", startRaw, loc)
	if err != nil {
		return domain.TimeInterval{}, fmt.Errorf("invalid window start %q: %w", startRaw, err)
	}
	end, err := cli.AtClock(start, endClock)
	if err != nil {
		return domain.TimeInterval{}, err
	}
	return domain.NewTimeInterval(start, end)
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestDuration, "duration", "m", 30, "duration in minutes")
	suggestCmd.Flags().StringVarP(&suggestCategory, "category", "t", "task", "category")
	suggestCmd.Flags().IntVarP(&suggestPriority, "priority", "p", 3, "priority, 1 (highest) to 5 (lowest)")
	suggestCmd.Flags().StringVar(&suggestDeadline, "deadline", "", "latest end (YYYY-MM-DDTHH:MM)")
	suggestCmd.Flags().StringSliceVar(&suggestWindows, "window", nil, "preferred window (repeatable)")
	suggestCmd.Flags().BoolVar(&suggestFlexible, "flexible", false, "fall back to the whole horizon when windows are full")
	suggestCmd.Flags().StringSliceVar(&suggestResources, "resource", nil, "required resource (repeatable)")
	suggestCmd.Flags().StringSliceVar(&suggestAttendees, "attendee", nil, "attendee (repeatable)")
	suggestCmd.Flags().BoolVar(&suggestBook, "book", false, "store the top suggestion")
	suggestCmd.Flags().IntVar(&suggestHorizon, "horizon", 0, "days to search (default from config)")
}
