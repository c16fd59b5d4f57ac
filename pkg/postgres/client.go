package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/saaga0h/jeeves-roomrelease/pkg/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

var errNotConnected = errors.New("postgres client not connected")

// PostgresClient wraps a lib/pq connection pool
type PostgresClient struct {
	db     *sql.DB
	config *config.Config
	logger *slog.Logger
}

// NewClient creates a new Postgres client. Nothing is dialled until Connect.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresClient{
		config: cfg,
		logger: logger,
	}
}

// Connect opens the pool and waits for the database to accept a ping,
// retrying up to connectAttempts times.
func (c *PostgresClient) Connect(ctx context.Context) error {
	connector, err := pq.NewConnector(c.config.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("invalid postgres connection settings: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(c.config.PostgresMaxConnections)
	db.SetMaxIdleConns(c.config.PostgresMaxIdleConnections)
	db.SetConnMaxLifetime(c.config.PostgresConnMaxLifetime)

	for attempt := 1; ; attempt++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts || ctx.Err() != nil {
			db.Close()
			return fmt.Errorf("failed to reach postgres after %d attempts: %w", attempt, err)
		}

		c.logger.Warn("Postgres not ready, retrying",
			"host", c.config.PostgresHost,
			"attempt", attempt,
			"error", err)

		select {
		case <-time.After(connectBackoff):
		case <-ctx.Done():
			db.Close()
			return ctx.Err()
		}
	}

	c.db = db
	c.logger.Info("Connected to Postgres",
		"host", c.config.PostgresHost,
		"port", c.config.PostgresPort,
		"database", c.config.PostgresDB)

	return nil
}

// Disconnect closes the pool
func (c *PostgresClient) Disconnect() error {
	if c.db == nil {
		return nil
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close postgres connection: %w", err)
	}

	c.db = nil
	return nil
}

func (c *PostgresClient) IsConnected() bool {
	return c.db != nil
}

func (c *PostgresClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.db == nil {
		return nil, errNotConnected
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, describe(err)
	}
	return res, nil
}

func (c *PostgresClient) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	if c.db == nil {
		return nil, errNotConnected
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, describe(err)
	}
	return rows, nil
}

func (c *PostgresClient) Migrate(ctx context.Context, statements ...string) error {
	if c.db == nil {
		return errNotConnected
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, describe(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// describe adds the SQLSTATE class to server errors so logs show what kind of failure it was
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s %s): %w", pqErr.Message, pqErr.Code, pqErr.Code.Name(), err)
	}
	return err
}
