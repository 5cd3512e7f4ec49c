package conflict

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var (
	resolvePick   int
	resolveDryRun bool
)

var solutionsCmd = &cobra.Command{
	Use:   "solutions",
	Short: "Propose remediations for hard violations",
	Long: `Propose moves, resizes and reassignments that resolve hard violations,
ranked by confidence.

Examples:
  slotwise conflicts solutions
  slotwise conflicts solutions --json`,
	Aliases: []string{"propose"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ProposeSolutionsHandler == nil || app.Defaults == nil {
			return nil
		}

		result, err := propose(cmd, app)
		if err != nil {
			return err
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd, result)
		}

		out := cmd.OutOrStdout()
		if len(result.Solutions) == 0 {
			fmt.Fprintf(out, "No remediations for %d violations.\n", len(result.Violations))
			return nil
		}
		fmt.Fprintf(out, "%d remediations for %d violations\n", len(result.Solutions), len(result.Violations))
		cli.Rule(cmd, 60)
		for i, s := range result.Solutions {
			printSolution(cmd, app.Loc(), i+1, s)
		}
		fmt.Fprintln(out, "\nApply one with: slotwise conflicts resolve --pick N")
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Apply a proposed remediation",
	Long: `Recompute remediations and apply the one at --pick (1-based, as listed by
'slotwise conflicts solutions'). Applying is all-or-nothing and prints a
rollback token for 'slotwise conflicts undo'.

Examples:
  slotwise conflicts resolve
  slotwise conflicts resolve --pick 2 --dry-run`,
	Aliases: []string{"apply"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := cli.RequireApp(cmd)
		if !ok || app.ProposeSolutionsHandler == nil || app.ApplySolutionHandler == nil || app.Defaults == nil {
			return nil
		}

		proposed, err := propose(cmd, app)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(proposed.Solutions) == 0 {
			fmt.Fprintln(out, "Nothing to resolve.")
			return nil
		}
		if resolvePick < 1 || resolvePick > len(proposed.Solutions) {
			return fmt.Errorf("--pick must be between 1 and %d", len(proposed.Solutions))
		}
		solution := proposed.Solutions[resolvePick-1]

		result, err := app.ApplySolutionHandler.Handle(cmd.Context(), commands.ApplySolutionCommand{
			Solution: solution,
			DryRun:   resolveDryRun,
			Location: app.Loc(),
		})
		if err != nil && result == nil {
			return fmt.Errorf("failed to apply solution: %w", err)
		}

		if cli.JSONOutput() {
			if jerr := cli.PrintJSON(cmd, result); jerr != nil {
				return jerr
			}
			return err
		}

		printSolution(cmd, app.Loc(), resolvePick, solution)
		cli.Rule(cmd, 60)
		switch {
		case !result.Success:
			fmt.Fprintf(out, "Not applied: %s\n", result.Error)
			return fmt.Errorf("solution %s was not applied", solution.ID)
		case result.DryRun:
			fmt.Fprintf(out, "Dry run: %d operations would apply cleanly.\n", len(result.AppliedOperations))
		default:
			fmt.Fprintf(out, "Applied %d operations.\n", len(result.AppliedOperations))
			if result.RollbackToken != nil {
				fmt.Fprintf(out, "Undo with: slotwise conflicts undo %s\n", result.RollbackToken.ID)
			}
		}
		return err
	},
}

func propose(cmd *cobra.Command, app *cli.App) (*queries.ProposeSolutionsResult, error) {
	window, err := auditWindow(app)
	if err != nil {
		return nil, err
	}
	result, err := app.ProposeSolutionsHandler.Handle(cmd.Context(), queries.ProposeSolutionsQuery{
		Range:    window,
		Detector: app.Defaults.DetectorConfig(),
		Options:  app.Defaults.SolutionOptions(app.Clock()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to propose solutions: %w", err)
	}
	return result, nil
}

func init() {
	resolveCmd.Flags().IntVar(&resolvePick, "pick", 1, "remediation to apply (1-based)")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "validate without changing the schedule")
}
