package database

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// TxFunc is the unit of work executed inside RunInTx.
type TxFunc func(ctx context.Context, tx bun.Tx) error

// RunInTx executes fn in a read-committed transaction on the writer,
// retrying from scratch on serialization failures and deadlocks.
func (c *Connections) RunInTx(ctx context.Context, fn TxFunc) error {
	backoff := 50 * time.Millisecond
	var lastErr error

	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	if c.driver == "sqlite" {
		// SQLite transactions are serializable and reject other levels.
		opts = nil
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Writer.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}

// IsRetryable reports whether err is a transient concurrency failure that a
// fresh transaction attempt may resolve.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1213 deadlock, 1205 lock wait timeout
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
