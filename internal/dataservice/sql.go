package dataservice

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// SQLClient serves the data capability from a PostgreSQL database.
//
// When Setup is set it runs before the first query and is retried on every
// call until it succeeds once, so the client can be built while the database
// is still unreachable.
type SQLClient struct {
	DB    *sql.DB
	Setup func(ctx context.Context, db *sql.DB) error

	mu    sync.Mutex
	ready bool
}

// NewSQLClient wraps an open database handle.
func NewSQLClient(db *sql.DB) *SQLClient {
	return &SQLClient{DB: db}
}

// Ready runs Setup if it has not succeeded yet.
func (c *SQLClient) Ready(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready || c.Setup == nil {
		return nil
	}
	if err := c.Setup(ctx, c.DB); err != nil {
		return err
	}
	c.ready = true
	return nil
}

func (c *SQLClient) Select(ctx context.Context, table string, columns []string, filters []Filter, order *Order) ([]Row, error) {
	query, params, err := compileSelect(table, columns, filters, order)
	if err != nil {
		return nil, err
	}
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}

	rows, err := c.DB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select from %s failed: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		row := make(Row, len(names))
		for i, n := range names {
			row[n] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	return out, nil
}

func (c *SQLClient) Insert(ctx context.Context, table string, rows []Row) error {
	query, params, err := compileInsert(table, rows)
	if err != nil {
		return err
	}
	if err := c.Ready(ctx); err != nil {
		return err
	}
	if _, err := c.DB.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("insert into %s failed: %w", table, err)
	}
	return nil
}

func (c *SQLClient) Delete(ctx context.Context, table string, filters []Filter) error {
	query, params, err := compileDelete(table, filters)
	if err != nil {
		return err
	}
	if err := c.Ready(ctx); err != nil {
		return err
	}
	if _, err := c.DB.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("delete from %s failed: %w", table, err)
	}
	return nil
}

func (c *SQLClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Unavailable stands in for the data service when it is not configured.
type Unavailable struct{}

func (Unavailable) Select(context.Context, string, []string, []Filter, *Order) ([]Row, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) Insert(context.Context, string, []Row) error { return ErrNotConfigured }

func (Unavailable) Delete(context.Context, string, []Filter) error { return ErrNotConfigured }

func (Unavailable) Ping(context.Context) error { return ErrNotConfigured }
