package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

const (
	baseBackoff = 50 * time.Millisecond
	maxBackoff  = time.Second
)

// TxOptions configures a transaction and, for WithRetry, how failed attempts are retried.
type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int

	// OnRetry is called before sleeping between attempts. attempt starts at 1.
	OnRetry func(attempt int, class ErrorClass, err error)
}

// DefaultTxOptions is read committed with three retries. Every write path locks the rows it
// mutates, so read committed is enough.
func DefaultTxOptions() TxOptions {
	return TxOptions{IsolationLevel: sql.LevelReadCommitted, MaxRetries: 3}
}

// Logged returns a copy of opts that reports retried attempts to onRetry.
func (o TxOptions) Logged(onRetry func(attempt int, class ErrorClass, err error)) TxOptions {
	o.OnRetry = onRetry
	return o
}

// WithTransaction runs fn inside one transaction, committing when fn returns nil and rolling
// back otherwise.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.IsolationLevel, ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, fnErr)
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithRetry runs fn in a fresh transaction per attempt, retrying deadlocks, serialization
// failures and lock timeouts with jittered exponential backoff. fn must be safe to re-run.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := WithTransaction(ctx, db, opts, fn)
		class := ClassifyError(err)
		switch {
		case err == nil:
			return nil
		case !class.Retryable():
			return err
		case attempt > opts.MaxRetries:
			return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt, class, err)
		}
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return err
		}
	}
}

// backoff doubles from baseBackoff per attempt, capped at maxBackoff, plus up to 25% jitter.
func backoff(attempt int) time.Duration {
	d := maxBackoff
	if attempt < 16 {
		if b := baseBackoff << (attempt - 1); b < maxBackoff {
			d = b
		}
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
