// Package retry provides bounded retry of transient failures with
// exponential backoff and jitter, plus a transactional variant scoped to a
// single storage partition.
package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers treated as transient conflicts.
const (
	mysqlErrDuplicateKey    = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// Policy controls attempt count and backoff shape. Zero values fall back to
// the defaults below.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	JitterMax   time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 50 * time.Millisecond
	defaultJitterMax   = 50 * time.Millisecond
)

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.JitterMax <= 0 {
		p.JitterMax = defaultJitterMax
	}
	return p
}

// delay computes base * 2^attempt plus random jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	return d + time.Duration(rand.Int63n(int64(p.JitterMax)))
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so IsTransient reports true for it. Storage
// adapters use it for backend-specific conflict signals the classifier does
// not know about.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether retrying the same operation, unchanged, has a
// reasonable chance of succeeding: write conflicts, duplicate-key races and
// transient network failures. Business-rule failures are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout, mysqlErrDuplicateKey:
			return true
		}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// Do invokes op, retrying transient failures up to p.MaxAttempts total
// attempts with exponential backoff and jitter. Non-transient failures and
// context cancellation propagate immediately.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return err
}
