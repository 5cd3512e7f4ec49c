// Package schedule holds the entity, slot and placement commands.
package schedule

import (
	"github.com/spf13/cobra"
)

// Cmd is the schedule command group
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled entities and find placements",
	Long:  `Add and remove scheduled entities, find free slots and rank placements for new work.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(slotsCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(suggestCmd)
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(syncCmd)
}
