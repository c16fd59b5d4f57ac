package postgres

import (
	"context"
	"database/sql"
)

// Client is the release history database
type Client interface {
	// Connect opens the pool, retrying until the database answers or ctx ends
	Connect(ctx context.Context) error

	// Disconnect closes the pool
	Disconnect() error

	// Exec executes a statement without returning rows
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query runs a query; the caller closes the returned rows
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)

	// Migrate applies schema statements in a single transaction
	Migrate(ctx context.Context, statements ...string) error

	// IsConnected returns whether the client holds an open pool
	IsConnected() bool

	// HealthCheck pings the database and reports pool usage
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// Rows is the part of *sql.Rows callers iterate over
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}
