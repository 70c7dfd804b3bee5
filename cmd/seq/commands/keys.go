package commands

import (
	"fmt"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var keyColumns = columns[seq.Key]{
	header: []string{"ID", "Tags"},
	row: func(key seq.Key) []string {
		return []string{key.ID, formatTags(key.Tags)}
	},
}

// NewKeysCommand creates the keys command group.
func NewKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"key"},
		Short:   "Manage signing keys",
		Long:    "List and create the keys that sign for accounts and flavors",
	}

	cmd.AddCommand(newListCommand("list", "List keys", seq.ListKeys, keyColumns))
	cmd.AddCommand(newKeysCreateCommand())

	return cmd
}

func newKeysCreateCommand() *cobra.Command {
	var (
		id             string
		tags           []string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			key, err := seq.NewKey().SetID(id).SetTags(tagMap).WithIdempotencyKey(idempotencyKey).
				Create(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to create key: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), key, func(table *tablewriter.Table) error {
				return appendRows(table, keyColumns.header, []seq.Key{*key}, keyColumns.row)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "key id (generated by the ledger when omitted)")
	addTagFlag(cmd, &tags, "tag", "key tag")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key that makes the create safe to retry")

	return cmd
}
