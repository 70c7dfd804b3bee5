package seq

import (
	"context"
	"fmt"
)

// List operation names.
const (
	OperationListAccounts     = "list-accounts"
	OperationListFlavors      = "list-flavors"
	OperationListKeys         = "list-keys"
	OperationListTokens       = "list-tokens"
	OperationListActions      = "list-actions"
	OperationListTransactions = "list-transactions"
)

// ListBuilder configures a list query for one resource kind.
//
// Mutators return the builder for chaining. Query snapshots the current state
// into an immutable value, so reusing a builder never changes a query that
// was already produced.
type ListBuilder[T any] struct {
	operation    string
	filter       string
	filterParams []interface{}
	pageSize     int
}

// NewListBuilder returns a builder for the given list operation.
func NewListBuilder[T any](operation string) *ListBuilder[T] {
	return &ListBuilder[T]{operation: operation}
}

// ListAccounts returns a builder for listing accounts.
func ListAccounts() *ListBuilder[Account] {
	return NewListBuilder[Account](OperationListAccounts)
}

// ListFlavors returns a builder for listing flavors.
func ListFlavors() *ListBuilder[Flavor] {
	return NewListBuilder[Flavor](OperationListFlavors)
}

// ListKeys returns a builder for listing keys.
func ListKeys() *ListBuilder[Key] {
	return NewListBuilder[Key](OperationListKeys)
}

// ListTokens returns a builder for listing token groups.
func ListTokens() *ListBuilder[Token] {
	return NewListBuilder[Token](OperationListTokens)
}

// ListActions returns a builder for listing actions.
func ListActions() *ListBuilder[Action] {
	return NewListBuilder[Action](OperationListActions)
}

// ListTransactions returns a builder for listing transactions.
func ListTransactions() *ListBuilder[Transaction] {
	return NewListBuilder[Transaction](OperationListTransactions)
}

// Operation returns the list operation name.
func (b *ListBuilder[T]) Operation() string {
	return b.operation
}

// WithFilter sets the filter expression. Placeholders $1, $2, ... refer to
// filter parameters by position.
func (b *ListBuilder[T]) WithFilter(filter string) *ListBuilder[T] {
	b.filter = filter

	return b
}

// AddFilterParam appends one filter parameter.
func (b *ListBuilder[T]) AddFilterParam(param interface{}) *ListBuilder[T] {
	b.filterParams = append(b.filterParams, param)

	return b
}

// WithFilterParams replaces all filter parameters.
func (b *ListBuilder[T]) WithFilterParams(params ...interface{}) *ListBuilder[T] {
	b.filterParams = append([]interface{}(nil), params...)

	return b
}

// WithPageSize sets the page size. A value <= 0 leaves it to the server.
func (b *ListBuilder[T]) WithPageSize(pageSize int) *ListBuilder[T] {
	if pageSize < 0 {
		pageSize = 0
	}

	b.pageSize = pageSize

	return b
}

// Query returns the fresh query described by the builder.
func (b *ListBuilder[T]) Query() Query {
	var params []interface{}
	if len(b.filterParams) > 0 {
		params = make([]interface{}, len(b.filterParams))
		copy(params, b.filterParams)
	}

	return Query{
		filter:       b.filter,
		filterParams: params,
		pageSize:     b.pageSize,
	}
}

// GetPage executes the query and returns the first page of results.
func (b *ListBuilder[T]) GetPage(ctx context.Context, client Client) (*Page[T], error) {
	return fetchPage[T](ctx, client, b.operation, b.Query())
}

// GetPageAt returns the page that follows cursor. Every other builder
// setting is ignored; the cursor alone defines the continuation.
func (b *ListBuilder[T]) GetPageAt(ctx context.Context, client Client, cursor string) (*Page[T], error) {
	if cursor == "" {
		return nil, fmt.Errorf("fetching %s page: %w", b.operation, ErrMissingCursor)
	}

	return fetchPage[T](ctx, client, b.operation, ContinuationQuery(cursor))
}

// GetIterable returns a lazy sequence over every item matching the query.
func (b *ListBuilder[T]) GetIterable(client Client) *Items[T] {
	return NewItems[T](client, b.operation, b.Query())
}

// GetIterableAt returns a lazy sequence that resumes after cursor. An empty
// cursor yields a sequence whose first Next fails with ErrMissingCursor.
func (b *ListBuilder[T]) GetIterableAt(client Client, cursor string) *Items[T] {
	items := NewItems[T](client, b.operation, ContinuationQuery(cursor))
	if cursor == "" {
		items.err = fmt.Errorf("fetching %s page: %w", b.operation, ErrMissingCursor)
	}

	return items
}
