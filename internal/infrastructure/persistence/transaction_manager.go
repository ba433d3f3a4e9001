package persistence

import (
	"context"
	"fmt"
	"log"
	"time"

	appErrors "github.com/nexuscrm/persist/pkg/errors"
)

// TxConnection is the transactional side of *database.Connection
type TxConnection interface {
	TransactionBegin(ctx context.Context) error
	TransactionCommit(ctx context.Context) error
	TransactionRollback(ctx context.Context) error
}

// TransactionManager runs units of work inside one transaction of a connection
type TransactionManager struct {
	conn TxConnection
}

// NewTransactionManager creates a new TransactionManager
func NewTransactionManager(conn TxConnection) *TransactionManager {
	return &TransactionManager{conn: conn}
}

// WithTransaction executes a function within a database transaction.
// The transaction is automatically rolled back if the function returns an error or panics.
// The transaction is committed if the function returns nil.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := tm.conn.TransactionBegin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure rollback on panic
	defer func() {
		if p := recover(); p != nil {
			_ = tm.conn.TransactionRollback(ctx)
			panic(p) // Re-throw panic after rollback
		}
	}()

	// Execute the function
	if err := fn(ctx); err != nil {
		if rbErr := tm.conn.TransactionRollback(ctx); rbErr != nil {
			log.Printf("⚠️ Rollback failed: %v", rbErr)
			return fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
		}
		return err
	}

	// Commit the transaction
	if err := tm.conn.TransactionCommit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// WithRetry executes a function within a transaction with automatic retry on deadlock.
// Deadlocks are retried up to maxRetries times with exponential backoff.
// Other errors are returned immediately without retry.
func (tm *TransactionManager) WithRetry(ctx context.Context, fn func(ctx context.Context) error, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := tm.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isDeadlock(err) {
			return err
		}

		if attempt < maxRetries-1 {
			backoff := time.Millisecond * time.Duration(100*(1<<uint(attempt)))
			log.Printf("⚠️ Deadlock detected, retrying in %s (attempt %d/%d)", backoff, attempt+2, maxRetries)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if maxRetries == 1 {
		return lastErr
	}
	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// isDeadlock checks if an error is a deadlock error.
// MySQL/TiDB deadlock error codes:
// - 1213: Deadlock found when trying to get lock
// - 1205: Lock wait timeout exceeded
func isDeadlock(err error) bool {
	return appErrors.HasEngineNumber(err, appErrors.ErrNumDeadlock) ||
		appErrors.HasEngineNumber(err, appErrors.ErrNumLockWait)
}
