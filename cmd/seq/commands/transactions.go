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

var transactionColumns = columns[seq.Transaction]{
	header: []string{"ID", "Sequence", "Timestamp", "Actions", "Tags"},
	row: func(tx seq.Transaction) []string {
		kinds := make([]string, 0, len(tx.Actions))
		for _, action := range tx.Actions {
			kinds = append(kinds, action.Type)
		}

		return []string{
			tx.ID,
			strconv.FormatInt(tx.SequenceNumber, 10),
			formatTime(tx.Timestamp),
			strings.Join(kinds, ", "),
			formatTags(tx.Tags),
		}
	},
}

// NewTransactionsCommand creates the transactions command group.
func NewTransactionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"transaction", "tx"},
		Short:   "List and submit transactions",
		Long:    "List transactions or submit a single-action issue, transfer or retire",
	}

	cmd.AddCommand(newListCommand("list", "List transactions", seq.ListTransactions, transactionColumns))
	cmd.AddCommand(newActionCommand(seq.ActionTypeIssue))
	cmd.AddCommand(newActionCommand(seq.ActionTypeTransfer))
	cmd.AddCommand(newActionCommand(seq.ActionTypeRetire))

	return cmd
}

// actionOptions holds the flags of issue, transfer and retire.
type actionOptions struct {
	flavor         string
	amount         int64
	source         string
	destination    string
	filter         string
	params         []string
	tokenTags      []string
	actionTags     []string
	txTags         []string
	idempotencyKey string
}

func (o *actionOptions) validate(kind string) error {
	if o.flavor == "" {
		return constants.ErrFlavorIDRequired
	}

	if o.amount <= 0 {
		return constants.ErrAmountRequired
	}

	if kind != seq.ActionTypeIssue && o.source == "" {
		return fmt.Errorf("%w: --from", constants.ErrAccountIDRequired)
	}

	if kind != seq.ActionTypeRetire && o.destination == "" {
		return fmt.Errorf("%w: --to", constants.ErrAccountIDRequired)
	}

	return nil
}

// build adds the single action described by the flags to a new transaction.
func (o *actionOptions) build(kind string) (*seq.TransactionBuilder, error) {
	tokenTags, err := parseTags(o.tokenTags)
	if err != nil {
		return nil, err
	}

	actionTags, err := parseTags(o.actionTags)
	if err != nil {
		return nil, err
	}

	txTags, err := parseTags(o.txTags)
	if err != nil {
		return nil, err
	}

	builder := seq.NewTransaction().SetTransactionTags(txTags).WithIdempotencyKey(o.idempotencyKey)

	switch kind {
	case seq.ActionTypeIssue:
		builder.Issue(seq.Issue{
			FlavorID:             o.flavor,
			Amount:               o.amount,
			DestinationAccountID: o.destination,
			TokenTags:            tokenTags,
			ActionTags:           actionTags,
		})
	case seq.ActionTypeTransfer:
		builder.Transfer(seq.Transfer{
			FlavorID:             o.flavor,
			Amount:               o.amount,
			SourceAccountID:      o.source,
			DestinationAccountID: o.destination,
			Filter:               o.filter,
			FilterParams:         parseParams(o.params),
			TokenTags:            tokenTags,
			ActionTags:           actionTags,
		})
	default:
		builder.Retire(seq.Retire{
			FlavorID:        o.flavor,
			Amount:          o.amount,
			SourceAccountID: o.source,
			Filter:          o.filter,
			FilterParams:    parseParams(o.params),
			ActionTags:      actionTags,
		})
	}

	return builder, nil
}

func newActionCommand(kind string) *cobra.Command {
	opts := &actionOptions{}

	cmd := &cobra.Command{
		Use:   kind,
		Short: titleCase(kind) + " tokens",
		Long: titleCase(kind) + ` tokens in a one-action transaction.

Without --idempotency-key the transaction is sent once and never retried, so
a connectivity failure leaves its outcome unknown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.validate(kind)
			if err != nil {
				return err
			}

			builder, err := opts.build(kind)
			if err != nil {
				return err
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			tx, err := builder.Transact(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to %s tokens: %w", kind, err)
			}

			return writeOutput(cmd.OutOrStdout(), tx, func(table *tablewriter.Table) error {
				return appendRows(table, actionColumns.header, tx.Actions, actionColumns.row)
			})
		},
	}

	cmd.Flags().StringVar(&opts.flavor, "flavor", "", "flavor id")
	cmd.Flags().Int64Var(&opts.amount, "amount", 0, "number of units")

	if kind != seq.ActionTypeIssue {
		cmd.Flags().StringVar(&opts.source, "from", "", "source account id")
		cmd.Flags().StringVar(&opts.filter, "filter", "", "token filter selecting which units to spend")
		cmd.Flags().StringArrayVar(&opts.params, "param", nil, "token filter parameter (repeatable)")
	}

	if kind != seq.ActionTypeRetire {
		cmd.Flags().StringVar(&opts.destination, "to", "", "destination account id")
		addTagFlag(cmd, &opts.tokenTags, "token-tag", "tag on the resulting tokens")
	}

	addTagFlag(cmd, &opts.actionTags, "action-tag", "action tag")
	addTagFlag(cmd, &opts.txTags, "tx-tag", "transaction tag")
	cmd.Flags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "key that makes the transaction safe to retry")

	return cmd
}
