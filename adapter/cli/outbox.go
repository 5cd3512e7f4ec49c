package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and relay queued scheduling events",
	Long: `Events from apply and undo are queued in the store's outbox and relayed
to RabbitMQ by 'slotwise serve'. These commands relay them by hand.`,
}

var outboxStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many events are waiting",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := RequireApp(cmd)
		if !ok {
			return nil
		}
		if app.Outbox == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "outbox disabled (memory store or SLOTWISE_OUTBOX=false)")
			return nil
		}

		pending, err := app.Outbox.Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to count pending events: %w", err)
		}
		if JSONOutput() {
			return PrintJSON(cmd, map[string]any{"pending": pending, "stats": app.Outbox.GetStats()})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pending: %d\n", pending)
		return nil
	},
}

var outboxFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Relay every due event now",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := RequireApp(cmd)
		if !ok {
			return nil
		}
		if app.Outbox == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "outbox disabled (memory store or SLOTWISE_OUTBOX=false)")
			return nil
		}

		total := 0
		for {
			n, err := app.Outbox.ProcessOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to relay events: %w", err)
			}
			if n == 0 {
				break
			}
			total += n
		}

		stats := app.Outbox.GetStats()
		if JSONOutput() {
			return PrintJSON(cmd, map[string]any{"relayed": total, "stats": stats})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "relayed %d event(s)", total)
		if stats.FailedCount+stats.DeadCount > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d failed: %s", stats.FailedCount+stats.DeadCount, stats.LastError)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	outboxCmd.AddCommand(outboxStatusCmd, outboxFlushCmd)
	rootCmd.AddCommand(outboxCmd)
}
