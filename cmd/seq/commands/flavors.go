package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var flavorColumns = columns[seq.Flavor]{
	header: []string{"ID", "Keys", "Quorum", "Tags"},
	row: func(flavor seq.Flavor) []string {
		return []string{
			flavor.ID,
			strings.Join(flavor.KeyIDs, ", "),
			strconv.Itoa(flavor.Quorum),
			formatTags(flavor.Tags),
		}
	},
}

// NewFlavorsCommand creates the flavors command group.
func NewFlavorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flavors",
		Aliases: []string{"flavor"},
		Short:   "Manage flavors",
		Long:    "List, create and tag the flavors of tokens in the ledger",
	}

	cmd.AddCommand(newListCommand("list", "List flavors", seq.ListFlavors, flavorColumns))
	cmd.AddCommand(newFlavorsCreateCommand())
	cmd.AddCommand(newUpdateTagsCommand("flavor", seq.UpdateFlavorTags))

	return cmd
}

func newFlavorsCreateCommand() *cobra.Command {
	var (
		id             string
		keyIDs         []string
		quorum         int
		tags           []string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a flavor",
		Long:  "Create a flavor whose issuance is authorized by one or more keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return constants.ErrFlavorIDRequired
			}

			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}

			builder := seq.NewFlavor().SetID(id).SetTags(tagMap).WithIdempotencyKey(idempotencyKey)
			for _, keyID := range keyIDs {
				builder.AddKeyID(keyID)
			}

			if cmd.Flags().Changed("quorum") {
				builder.SetQuorum(quorum)
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			flavor, err := builder.Create(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to create flavor: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), flavor, func(table *tablewriter.Table) error {
				return appendRows(table, flavorColumns.header, []seq.Flavor{*flavor}, flavorColumns.row)
			})
		},
	}

	cmd.Flags().StringVar(&id, "flavor", "", "flavor id")
	cmd.Flags().StringArrayVar(&keyIDs, "key", nil, "key id that can issue the flavor (repeatable)")
	cmd.Flags().IntVar(&quorum, "quorum", 0, "number of keys required to issue (default: all keys)")
	addTagFlag(cmd, &tags, "tag", "flavor tag")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key that makes the create safe to retry")

	_ = cmd.MarkFlagRequired("key")

	return cmd
}
