// Package db opens the backing stores: the PostgreSQL data service and the
// Redis session store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
    id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL CHECK (title <> ''),
    url TEXT NOT NULL CHECK (url <> ''),
    description TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS bookmarks_user_created_idx
    ON bookmarks (user_id, created_at DESC);
`

// BuildDSN combines the data service endpoint with its access key. The key
// is used as the role password unless the endpoint already carries one.
// Both URL ("postgres://user@host/db") and key/value ("host=... user=...")
// forms are accepted. In the key/value form backslashes and quotes in the
// key are escaped.
func BuildDSN(endpoint, key string) (string, error) {
	if endpoint == "" || key == "" {
		return "", fmt.Errorf("data service endpoint and key are required")
	}

	if strings.HasPrefix(endpoint, "postgres://") || strings.HasPrefix(endpoint, "postgresql://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parse endpoint: %w", err)
		}
		if u.User == nil {
			return "", fmt.Errorf("endpoint has no user")
		}
		if _, ok := u.User.Password(); !ok {
			u.User = url.UserPassword(u.User.Username(), key)
		}
		return u.String(), nil
	}

	if strings.Contains(endpoint, "password=") {
		return endpoint, nil
	}
	return endpoint + " password='" + dsnEscaper.Replace(key) + "'", nil
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`)

// OpenPostgres returns a handle for dsn without connecting. The first
// connection is made by ApplySchema or the first query.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// ApplySchema verifies the connection and creates the bookmarks table if needed.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
