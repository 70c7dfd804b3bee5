package seq

import (
	"encoding/json"
	"fmt"
)

// Query is an immutable description of one list request.
//
// A query is either fresh (filter, filter parameters, page size) or a
// continuation (cursor only). The two forms never mix: a continuation is
// built from nothing but the server-issued cursor.
type Query struct {
	filter       string
	filterParams []interface{}
	cursor       string
	pageSize     int
}

// ContinuationQuery returns a query that resumes a scan from cursor.
func ContinuationQuery(cursor string) Query {
	return Query{cursor: cursor}
}

// Filter returns the filter expression of a fresh query.
func (q Query) Filter() string {
	return q.filter
}

// FilterParams returns a copy of the filter parameters.
func (q Query) FilterParams() []interface{} {
	if q.filterParams == nil {
		return nil
	}

	params := make([]interface{}, len(q.filterParams))
	copy(params, q.filterParams)

	return params
}

// Cursor returns the continuation cursor, empty for a fresh query.
func (q Query) Cursor() string {
	return q.cursor
}

// PageSize returns the requested page size, zero when unset.
func (q Query) PageSize() int {
	return q.pageSize
}

// IsContinuation reports whether the query resumes from a cursor.
func (q Query) IsContinuation() bool {
	return q.cursor != ""
}

// String implements fmt.Stringer.
func (q Query) String() string {
	if q.IsContinuation() {
		return fmt.Sprintf("cursor=%q", q.cursor)
	}

	return fmt.Sprintf("filter=%q params=%v page_size=%d", q.filter, q.filterParams, q.pageSize)
}

type queryWire struct {
	Filter       string        `json:"filter,omitempty"`
	FilterParams []interface{} `json:"filter_params,omitempty"`
	Cursor       string        `json:"cursor,omitempty"`
	PageSize     int           `json:"page_size,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (q Query) MarshalJSON() ([]byte, error) {
	if q.IsContinuation() {
		return json.Marshal(queryWire{Cursor: q.cursor})
	}

	return json.Marshal(queryWire{
		Filter:       q.filter,
		FilterParams: q.filterParams,
		PageSize:     q.pageSize,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *Query) UnmarshalJSON(data []byte) error {
	var wire queryWire

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return fmt.Errorf("parsing query: %w", err)
	}

	if wire.Cursor != "" {
		*q = ContinuationQuery(wire.Cursor)

		return nil
	}

	*q = Query{
		filter:       wire.Filter,
		filterParams: wire.FilterParams,
		pageSize:     wire.PageSize,
	}

	return nil
}
