package commands

import (
	"strconv"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/spf13/cobra"
)

var tokenColumns = columns[seq.Token]{
	header: []string{"Account", "Flavor", "Amount", "Tags"},
	row: func(token seq.Token) []string {
		return []string{
			token.AccountID,
			token.FlavorID,
			strconv.FormatInt(token.Amount, 10),
			formatTags(token.Tags),
		}
	},
}

// NewTokensCommand creates the tokens command group.
func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tokens",
		Aliases: []string{"token", "balances"},
		Short:   "Inspect token balances",
		Long: `List groups of tokens held by accounts. Filter on account, flavor or token
tags, for example:

  seq tokens list --filter 'account_id=$1 AND flavor_id=$2' --param alice --param usd`,
	}

	cmd.AddCommand(newListCommand("list", "List tokens", seq.ListTokens, tokenColumns))

	return cmd
}
