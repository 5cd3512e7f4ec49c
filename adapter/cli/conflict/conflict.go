// Package conflict holds the audit, remediation and undo commands.
package conflict

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// Cmd is the conflicts command group
var Cmd = &cobra.Command{
	Use:     "conflicts",
	Short:   "Audit the schedule and resolve conflicts",
	Long:    `Detect constraint violations, propose remediations, apply them and undo applied ones.`,
	Aliases: []string{"conflict"},
}

var (
	rangeFrom string
	rangeTo   string
)

func init() {
	Cmd.PersistentFlags().StringVar(&rangeFrom, "from", "", "first day to audit (YYYY-MM-DD, default: everything)")
	Cmd.PersistentFlags().StringVar(&rangeTo, "to", "", "last day to audit, inclusive (YYYY-MM-DD)")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(solutionsCmd)
	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(undoCmd)
	Cmd.AddCommand(tokensCmd)
}

// auditWindow returns nil when no --from was given.
func auditWindow(app *cli.App) (*domain.TimeInterval, error) {
	if rangeFrom == "" && rangeTo == "" {
		return nil, nil
	}
	from, to, err := cli.ParseRange(rangeFrom, rangeTo, 7, app.Clock(), app.Loc())
	if err != nil {
		return nil, err
	}
	window, err := domain.NewTimeInterval(from, to)
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func printViolation(cmd *cobra.Command, loc *time.Location, i int, v domain.ConflictViolation) {
	kind := "soft"
	if v.IsHard() {
		kind = "hard"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%s/%s] %s  %s\n", i, v.Severity, kind, v.Rule,
		v.EarliestStart.In(loc).Format("Mon Jan 2 15:04"))
	fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", v.Justification)
}

func printSolution(cmd *cobra.Command, loc *time.Location, i int, s domain.OptimizationSolution) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%2d. %s  (confidence %.2f, resolves %d, shift %dm)\n",
		i, s.Description, s.Confidence, s.Impact.ConflictsResolved, s.Impact.TimeShiftMinutes)
	for _, op := range s.Operations {
		switch op.Kind {
		case domain.OperationReassign:
			fmt.Fprintf(out, "    %s %s: %v -> %v\n", op.Kind, op.EntityID, op.FromResources, op.ToResources)
		default:
			fmt.Fprintf(out, "    %s %s: %s -> %s\n", op.Kind, op.EntityID, span(op.From, loc), span(op.To, loc))
		}
	}
}

func span(t domain.TimeInterval, loc *time.Location) string {
	return t.Start.In(loc).Format("Mon 15:04") + "-" + t.End.In(loc).Format("15:04")
}
