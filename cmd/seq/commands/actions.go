package commands

import (
	"strconv"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/spf13/cobra"
)

var actionColumns = columns[seq.Action]{
	header: []string{"ID", "Type", "Flavor", "Amount", "Source", "Destination", "Timestamp", "Tags"},
	row: func(action seq.Action) []string {
		return []string{
			action.ID,
			titleCase(action.Type),
			action.FlavorID,
			strconv.FormatInt(action.Amount, 10),
			action.SourceAccountID,
			action.DestinationAccountID,
			formatTime(action.Timestamp),
			formatTags(action.Tags),
		}
	},
}

// NewActionsCommand creates the actions command group.
func NewActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Aliases: []string{"action"},
		Short:   "Inspect and tag actions",
		Long:    "List the issue, transfer and retire actions recorded by the ledger",
	}

	cmd.AddCommand(newListCommand("list", "List actions", seq.ListActions, actionColumns))
	cmd.AddCommand(newUpdateTagsCommand("action", seq.UpdateActionTags))

	return cmd
}
