package commands

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// listOptions holds the flags shared by list commands.
type listOptions struct {
	filter     string
	params     []string
	pageSize   int
	cursor     string
	all        bool
	checkpoint string
}

func addListFlags(cmd *cobra.Command, opts *listOptions) {
	cmd.Flags().StringVar(&opts.filter, "filter", "", "filter expression, e.g. 'tags.type=$1'")
	cmd.Flags().StringArrayVar(&opts.params, "param", nil, "filter parameter for $1, $2, ... (repeatable)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "results per page (default from config or 50)")
	cmd.Flags().StringVar(&opts.cursor, "cursor", "", "resume after the page that returned this cursor")
	cmd.Flags().BoolVar(&opts.all, "all", false, "fetch all pages")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "fetch all pages, saving progress under this name")
}

func (o *listOptions) validate() error {
	if o.pageSize < 0 || o.pageSize > constants.MaxPageSize {
		return fmt.Errorf("%w: must be at most %d", constants.ErrPageSizeOutOfRange, constants.MaxPageSize)
	}

	if o.cursor != "" && (o.filter != "" || len(o.params) > 0) {
		return constants.ErrCursorAndFilter
	}

	if o.checkpoint != "" && o.cursor != "" {
		return constants.ErrCheckpointAndCursor
	}

	return nil
}

func (o *listOptions) effectivePageSize() int {
	if o.pageSize > 0 {
		return o.pageSize
	}

	if configured := viper.GetInt("page_size"); configured > 0 {
		return configured
	}

	return constants.StandardPageSize
}

// columns describes the table rendering of one resource type.
type columns[T any] struct {
	header []string
	row    func(T) []string
}

// listResult is the machine-readable form of a single page.
type listResult[T any] struct {
	Items    []T    `json:"items"            yaml:"items"`
	Cursor   string `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	LastPage bool   `json:"last_page"        yaml:"last_page"`
}

func newListCommand[T any](use, short string, builder func() *seq.ListBuilder[T], cols columns[T]) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ". Use --all or --checkpoint to walk every page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, builder(), opts, cols)
		},
	}

	addListFlags(cmd, opts)

	return cmd
}

func runList[T any](cmd *cobra.Command, builder *seq.ListBuilder[T], opts *listOptions, cols columns[T]) error {
	err := opts.validate()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	builder.WithFilter(opts.filter).
		WithFilterParams(parseParams(opts.params)...).
		WithPageSize(opts.effectivePageSize())

	client, err := createClient(ctx)
	if err != nil {
		return err
	}

	switch {
	case opts.checkpoint != "":
		return walkWithCheckpoint(ctx, cmd, client, builder, opts.checkpoint, cols)
	case opts.all:
		items := builder.GetIterable(client)
		if opts.cursor != "" {
			items = builder.GetIterableAt(client, opts.cursor)
		}

		all, err := items.All(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", builder.Operation(), err)
		}

		return renderItems(cmd, all, cols)
	default:
		var page *seq.Page[T]
		if opts.cursor != "" {
			page, err = builder.GetPageAt(ctx, client, opts.cursor)
		} else {
			page, err = builder.GetPage(ctx, client)
		}

		if err != nil {
			return fmt.Errorf("failed to list %s: %w", builder.Operation(), err)
		}

		return renderPage(cmd, page, cols)
	}
}

func walkWithCheckpoint[T any](ctx context.Context, cmd *cobra.Command, client seq.Client, builder *seq.ListBuilder[T],
	name string, cols columns[T],
) error {
	store, release, err := createCheckpointStore(ctx)
	if err != nil {
		return err
	}
	defer release()

	var all []T

	walkErr := seq.WalkPages(ctx, client, builder, store, name, func(page *seq.Page[T]) error {
		all = append(all, page.Items...)

		return nil
	})

	err = renderItems(cmd, all, cols)
	if walkErr != nil {
		return fmt.Errorf("listing stopped, rerun with --checkpoint %s to resume: %w", name, walkErr)
	}

	return err
}

func renderItems[T any](cmd *cobra.Command, items []T, cols columns[T]) error {
	if items == nil {
		items = []T{}
	}

	return writeOutput(cmd.OutOrStdout(), items, func(table *tablewriter.Table) error {
		return appendRows(table, cols.header, items, cols.row)
	})
}

func renderPage[T any](cmd *cobra.Command, page *seq.Page[T], cols columns[T]) error {
	items := page.Items
	if items == nil {
		items = []T{}
	}

	result := listResult[T]{Items: items, Cursor: page.Cursor, LastPage: page.LastPage}

	err := writeOutput(cmd.OutOrStdout(), result, func(table *tablewriter.Table) error {
		return appendRows(table, cols.header, items, cols.row)
	})
	if err != nil {
		return err
	}

	if outputFormat() == constants.FormatTable && !page.LastPage {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nMore results available. Next page: --cursor %s\n", page.Cursor)
	}

	return nil
}
