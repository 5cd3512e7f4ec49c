package schedule

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

var (
	addID        string
	addTitle     string
	addCategory  string
	addDate      string
	addStartTime string
	addEndTime   string
	addPriority  int
	addResources []string
	addAttendees []string
	addTags      []string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled entity",
	Long: `Add a scheduled entity, or replace one when --id already exists.

Categories: task, meeting, focus, habit, break, personal

Examples:
  slotwise schedule add --title "Deep work" --category focus --start 09:00 --end 11:00
  slotwise schedule add --title "Design review" --category meeting --start 14:00 --end 15:00 --resource room-1 --attendee ana@example.com
  slotwise schedule add --title "Lunch" --category personal --start 12:00 --end 13:00 --date 2026-03-02`,
	Aliases: []string{"new"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.AddEntityHandler == nil {
			return nil
		}

		category := domain.Category(strings.ToLower(addCategory))
		if !category.Valid() {
			return fmt.Errorf("invalid category: %s (valid: task, meeting, focus, habit, break, personal)", addCategory)
		}

		date, err := cli.ParseDate(addDate, app.Clock(), app.Loc())
		if err != nil {
			return err
		}
		start, err := cli.AtClock(date, addStartTime)
		if err != nil {
			return err
		}
		end, err := cli.AtClock(date, addEndTime)
		if err != nil {
			return err
		}

		result, err := app.AddEntityHandler.Handle(cmd.Context(), commands.AddEntityCommand{
			ID:        addID,
			Title:     addTitle,
			Start:     start,
			End:       end,
			Category:  category,
			Priority:  addPriority,
			Resources: addResources,
			Attendees: addAttendees,
			Tags:      addTags,
		})
		if err != nil {
			return fmt.Errorf("failed to add entity: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, result.Entity)
		}

		e := result.Entity
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Added %s to schedule\n", e.Category)
		cli.Rule(cmd, 40)
		fmt.Fprintf(out, "  Title:    %s\n", e.Title)
		fmt.Fprintf(out, "  Time:     %s - %s (%s)\n",
			e.Interval.Start.In(app.Loc()).Format("15:04"),
			e.Interval.End.In(app.Loc()).Format("15:04"),
			cli.FormatDuration(e.Interval.Duration()))
		fmt.Fprintf(out, "  Date:     %s\n", date.Format("Monday, January 2, 2006"))
		fmt.Fprintf(out, "  Priority: %d\n", e.Priority)
		fmt.Fprintf(out, "  ID:       %s\n", e.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addID, "id", "", "entity id (generated when empty)")
	addCmd.Flags().StringVar(&addTitle, "title", "", "entity title (required)")
	addCmd.Flags().StringVarP(&addCategory, "category", "t", "task", "category (task, meeting, focus, habit, break, personal)")
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "date (YYYY-MM-DD, default: today)")
	addCmd.Flags().StringVar(&addStartTime, "start", "", "start time (HH:MM, required)")
	addCmd.Flags().StringVar(&addEndTime, "end", "", "end time (HH:MM, required)")
	addCmd.Flags().IntVarP(&addPriority, "priority", "p", 3, "priority, 1 (highest) to 5 (lowest)")
	addCmd.Flags().StringSliceVar(&addResources, "resource", nil, "resource ref (repeatable)")
	addCmd.Flags().StringSliceVar(&addAttendees, "attendee", nil, "attendee (repeatable)")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag (repeatable)")

	addCmd.MarkFlagRequired("title")
	addCmd.MarkFlagRequired("start")
	addCmd.MarkFlagRequired("end")
}
