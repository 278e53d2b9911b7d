package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTxRetries bounds internal retries of a contended transaction before the
// failure is surfaced as ErrStoreUnavailable.
const maxTxRetries = 3

// runInTx executes fn inside a database transaction, retrying a bounded
// number of times when the store reports transient contention. Typed denials
// and not-found errors pass through untouched.
func runInTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// isRetryable reports whether err is a transient contention error worth
// retrying: serialization failures, deadlocks, lock timeouts, sqlite busy
// states, and unique-index races between concurrent registrations.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var denied *DeniedError
	if errors.As(err, &denied) {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrAccountBanned) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"could not serialize",
		"deadlock detected",
		"lock timeout",
		"lock_timeout",
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"duplicate key",
		"unique constraint",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// lockForUpdate adds a row lock to the query on databases that support it.
// SQLite has a single writer and serializes transactions on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
