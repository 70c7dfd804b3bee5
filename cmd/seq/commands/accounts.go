package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var accountColumns = columns[seq.Account]{
	header: []string{"ID", "Keys", "Quorum", "Tags"},
	row: func(account seq.Account) []string {
		return []string{
			account.ID,
			strings.Join(account.KeyIDs, ", "),
			strconv.Itoa(account.Quorum),
			formatTags(account.Tags),
		}
	},
}

// NewAccountsCommand creates the accounts command group.
func NewAccountsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account", "acct"},
		Short:   "Manage accounts",
		Long:    "List, create, tag and import ledger accounts",
	}

	cmd.AddCommand(newListCommand("list", "List accounts", seq.ListAccounts, accountColumns))
	cmd.AddCommand(newAccountsCreateCommand())
	cmd.AddCommand(newUpdateTagsCommand("account", seq.UpdateAccountTags))
	cmd.AddCommand(newAccountsImportCommand())

	return cmd
}

func newAccountsCreateCommand() *cobra.Command {
	var (
		id             string
		keyIDs         []string
		quorum         int
		tags           []string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long:  "Create an account controlled by one or more keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}

			builder := seq.NewAccount().SetID(id).SetTags(tagMap).WithIdempotencyKey(idempotencyKey)
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

			account, err := builder.Create(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			return writeOutput(cmd.OutOrStdout(), account, func(table *tablewriter.Table) error {
				return appendRows(table, accountColumns.header, []seq.Account{*account}, accountColumns.row)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "account id (generated by the ledger when omitted)")
	cmd.Flags().StringArrayVar(&keyIDs, "key", nil, "key id that can sign for the account (repeatable)")
	cmd.Flags().IntVar(&quorum, "quorum", 0, "number of keys required to sign (default: all keys)")
	addTagFlag(cmd, &tags, "tag", "account tag")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key that makes the create safe to retry")

	_ = cmd.MarkFlagRequired("key")

	return cmd
}

// accountsFile is the format read by "accounts import".
type accountsFile struct {
	Accounts []seq.Account `yaml:"accounts"`
}

func newAccountsImportCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create accounts from a YAML file",
		Long: `Create every account listed in a YAML file:

  accounts:
    - id: alice
      key_ids: [treasury-key]
      tags: {type: checking}

Accounts with an id are created with an idempotency key derived from it, so
rerunning an interrupted import is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := readAccountsFile(args[0])
			if err != nil {
				return err
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			return importAccounts(cmd, client, accounts, concurrency)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", constants.DefaultConcurrencyLimit, "accounts created in parallel")

	return cmd
}

func readAccountsFile(path string) ([]seq.Account, error) {
	// #nosec G304 -- the path is supplied by the user on purpose
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var file accountsFile

	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	if len(file.Accounts) == 0 {
		return nil, fmt.Errorf("%w: %s", constants.ErrNoAccountsInFile, path)
	}

	return file.Accounts, nil
}

// importIdempotencyKey returns a stable key for accounts with an id.
func importIdempotencyKey(ledger string, account seq.Account) string {
	if account.ID == "" {
		return seq.NewIdempotencyKey()
	}

	return "import/" + ledger + "/" + account.ID
}

type importRow struct {
	ID     string `json:"id"              yaml:"id"`
	Status string `json:"status"          yaml:"status"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func importAccounts(cmd *cobra.Command, client seq.Client, accounts []seq.Account, concurrency int) error {
	ledger := loadConfig().Ledger
	batch := seq.NewBatchBuilder()

	for i, account := range accounts {
		builder := seq.NewAccount().
			SetID(account.ID).
			SetTags(account.Tags).
			WithIdempotencyKey(importIdempotencyKey(ledger, account))

		for _, keyID := range account.KeyIDs {
			builder.AddKeyID(keyID)
		}

		if account.Quorum > 0 {
			builder.SetQuorum(account.Quorum)
		}

		label := account.ID
		if label == "" {
			label = "#" + strconv.Itoa(i+1)
		}

		batch.AddCreateAccount(label, builder)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results, err := seq.NewBatchExecutor(client, concurrency).Execute(ctx, batch.Build())

	rows := make([]importRow, 0, len(results))

	for _, result := range results {
		row := importRow{ID: result.ID, Status: "created"}
		if !result.Success {
			row.Status = "failed"
			if result.Error != nil {
				row.Error = result.Error.Error()
			}
		} else if account, ok := result.Data.(*seq.Account); ok && account.ID != "" {
			row.ID = account.ID
		}

		rows = append(rows, row)
	}

	outErr := writeOutput(cmd.OutOrStdout(), rows, func(table *tablewriter.Table) error {
		return appendRows(table, []string{"ID", "Status", "Error"}, rows, func(row importRow) []string {
			return []string{row.ID, row.Status, row.Error}
		})
	})

	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	if outErr != nil {
		return outErr
	}

	if failed := seq.FailedResults(results); len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d accounts", constants.ErrBatchCompletedFailure, len(failed), len(results))
	}

	return nil
}

// newUpdateTagsCommand builds "update-tags ID --tag k=v" for a resource kind.
func newUpdateTagsCommand(kind string, builder func() *seq.TagUpdateBuilder) *cobra.Command {
	var (
		tags     []string
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "update-tags ID",
		Short: "Replace " + kind + " tags",
		Long:  "Replace the full tag set of an existing " + kind + ". Tags not given are removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}

			if len(tagMap) == 0 && !clearAll {
				return fmt.Errorf("%w: use --tag or --clear", constants.ErrTagsFormat)
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			err = builder().ForID(args[0]).SetTags(tagMap).Update(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("failed to update %s tags: %w", kind, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Successfully updated tags of %s '%s'\n", kind, args[0])

			return nil
		},
	}

	addTagFlag(cmd, &tags, "tag", "new tag")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove all tags")

	return cmd
}
