package seq

import (
	"context"
	"fmt"
)

// Page is one server-returned batch of items.
//
// Cursor is opaque: it is never parsed, only replayed as the sole content of
// a continuation query. On the last page it still describes the terminal
// state of the scan and restarts an empty continuation.
type Page[T any] struct {
	Items    []T    `json:"items"     yaml:"items"`
	Cursor   string `json:"cursor"    yaml:"cursor"`
	LastPage bool   `json:"last_page" yaml:"last_page"`
}

// Len returns the number of items in the page.
func (p *Page[T]) Len() int {
	if p == nil {
		return 0
	}

	return len(p.Items)
}

// fetchPage sends query to operation and decodes one page.
func fetchPage[T any](ctx context.Context, client Client, operation string, query Query) (*Page[T], error) {
	var page Page[T]

	err := client.Invoke(ctx, &Call{
		Operation:  operation,
		Payload:    query,
		Idempotent: true,
	}, &page)
	if err != nil {
		return nil, fmt.Errorf("fetching %s page: %w", operation, err)
	}

	return &page, nil
}
