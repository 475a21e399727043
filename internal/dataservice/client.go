// Package dataservice is the generic remote data capability the bookmark
// adapter talks to: table-level select, insert and delete with equality
// filters and a single ordering column.
package dataservice

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned by every call when the data service
	// connection parameters are absent.
	ErrNotConfigured = errors.New("data service is not configured")
	// ErrUnscoped is returned for selects and deletes that carry no filter
	// or an empty filter value.
	ErrUnscoped = errors.New("unscoped query")
	// ErrInvalidIdentifier is returned for table or column names that are
	// not plain lower-case identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Row is an untyped record keyed by column name.
type Row map[string]any

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds a Filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Order sorts a select on one column.
type Order struct {
	Column     string
	Descending bool
}

// Client is the remote data service.
type Client interface {
	Select(ctx context.Context, table string, columns []string, filters []Filter, order *Order) ([]Row, error)
	Insert(ctx context.Context, table string, rows []Row) error
	Delete(ctx context.Context, table string, filters []Filter) error
	Ping(ctx context.Context) error
}
