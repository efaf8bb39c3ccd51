// Package data provides the database access layer.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CleanupDB wraps the shared connection pool with the single execution
// contract cleanup firings need: run one statement, report how many rows it
// affected and how long the database took.
type CleanupDB struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCleanupDB creates a CleanupDB over an existing pool.
func NewCleanupDB(db *sql.DB, logger *slog.Logger) *CleanupDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupDB{db: db, logger: logger}
}

// Ping verifies the pool can reach the database.
func (c *CleanupDB) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// ExecuteQuery runs one statement and returns the rows affected together with
// the elapsed database time in seconds. There are no transaction semantics
// beyond what the statement itself provides.
func (c *CleanupDB) ExecuteQuery(ctx context.Context, query string) (uint64, float64, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return 0, elapsed, fmt.Errorf("execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, elapsed, fmt.Errorf("rows affected: %w", err)
	}
	if affected < 0 {
		affected = 0
	}

	c.logger.DebugContext(ctx, "statement executed",
		"rows_affected", affected,
		"elapsed_seconds", elapsed,
	)
	return uint64(affected), elapsed, nil
}
