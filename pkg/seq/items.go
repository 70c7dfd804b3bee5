package seq

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Items is a lazy, forward-only sequence over every item matching a query.
//
// Pages are fetched only when the caller advances past the buffered items,
// and at most one page is held at a time. Items preserve server order within
// a page and page-arrival order across pages.
//
// An Items value is not safe for concurrent use. Once it reports
// ErrNoMoreItems or a fetch failure it stays in that state; build a new
// sequence from a ListBuilder or a saved cursor to replay.
type Items[T any] struct {
	client    Client
	operation string
	next      Query
	page      *Page[T]
	position  int
	pages     int
	done      bool
	err       error
}

// NewItems returns a sequence that starts by sending seed to operation.
func NewItems[T any](client Client, operation string, seed Query) *Items[T] {
	return &Items[T]{
		client:    client,
		operation: operation,
		next:      seed,
		page:      &Page[T]{},
	}
}

// Next returns the next item, fetching further pages as needed. It returns
// ErrNoMoreItems once the last page has been consumed.
func (it *Items[T]) Next(ctx context.Context) (T, error) {
	var zero T

	for {
		if it.err != nil {
			return zero, it.err
		}

		if it.position < len(it.page.Items) {
			item := it.page.Items[it.position]
			it.position++

			return item, nil
		}

		if it.done {
			return zero, ErrNoMoreItems
		}

		if it.pages > 0 && !it.next.IsContinuation() {
			it.err = fmt.Errorf("fetching %s page %d: %w", it.operation, it.pages+1, ErrMissingCursor)

			return zero, it.err
		}

		page, err := fetchPage[T](ctx, it.client, it.operation, it.next)
		if err != nil {
			it.err = err

			return zero, err
		}

		it.pages++
		it.page = page
		it.position = 0
		it.done = page.LastPage
		it.next = ContinuationQuery(page.Cursor)
	}
}

// Cursor returns the cursor of the most recently fetched page, or "" before
// the first fetch. Replaying it resumes after that page.
func (it *Items[T]) Cursor() string {
	return it.page.Cursor
}

// PagesFetched returns the number of pages fetched so far.
func (it *Items[T]) PagesFetched() int {
	return it.pages
}

// Err returns the fetch failure that terminated the sequence, if any.
func (it *Items[T]) Err() error {
	return it.err
}

// All drains the sequence into a slice.
func (it *Items[T]) All(ctx context.Context) ([]T, error) {
	var all []T

	err := it.ForEach(ctx, func(item T) error {
		all = append(all, item)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// ForEach calls fn for every remaining item. It stops at the first error
// returned by fn or by a page fetch.
func (it *Items[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for {
		item, err := it.Next(ctx)
		if errors.Is(err, ErrNoMoreItems) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(item)
		if err != nil {
			return err
		}
	}
}

// Seq adapts the sequence to a range-over-func iterator. A fetch failure is
// yielded once with the zero item and ends the iteration.
func (it *Items[T]) Seq(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, err := it.Next(ctx)
			if errors.Is(err, ErrNoMoreItems) {
				return
			}

			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}
