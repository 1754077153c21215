// Package repository implements the typed persistence layer over the
// relational store (spec §4.B): datasets, stops, routes, flights, and graph
// metadata, with batch upserts, active-flag transactions, and resilience
// wrapping modeled on the teacher corpus's retry/circuit-breaker idiom.
//
// Queries go through database/sql via the pgx/v5 stdlib adapter rather than
// pgxpool directly: it is the only way to keep the production driver
// (pgx/v5) and the test double (DATA-DOG/go-sqlmock) pointed at the same
// interface, since sqlmock only replaces a database/sql/driver.Driver.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/sony/gobreaker"

	"github.com/sakha-transit/tripgraph/config"
	"github.com/sakha-transit/tripgraph/errors"
)

// DB wraps a relational connection pool with a circuit breaker and retry
// policy shared by every repository in this package.
type DB struct {
	*sql.DB
	breaker       *gobreaker.CircuitBreaker
	retryAttempts int
}

// Open connects to the relational store using the settings in cfg.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository: open: %w", err)
	}
	conn.SetMaxOpenConns(int(cfg.MaxConns))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "relational-store",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
	})

	return &DB{DB: conn, breaker: breaker, retryAttempts: cfg.RetryAttempts}, nil
}

// NewForTest wraps an already-open connection (typically an sqlmock double)
// with a no-retry, never-tripping breaker, so other packages' tests can
// exercise repository methods against a fake driver without a real database.
func NewForTest(conn *sql.DB) *DB {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})
	return &DB{DB: conn, breaker: breaker, retryAttempts: 0}
}

// withResilience runs op through the circuit breaker, retrying any error fn
// returns with an exponential backoff, up to db.retryAttempts retries after
// the first attempt.
// Context cancellation always aborts immediately regardless of attempts left.
func (db *DB) withResilience(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxInt(db.retryAttempts, 0))), ctx)

	attempt := func() error {
		_, err := db.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		return err
	}

	if err := backoff.Retry(attempt, b); err != nil {
		return errors.NewRepositoryError(op, err)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// txDo runs fn inside a transaction, committing on success and rolling back
// on any error — the BEGIN/COMMIT/ROLLBACK shape spec §5 requires of every
// batch upsert and active-flag flip.
func (db *DB) txDo(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
