package retry

import (
	"context"
	"database/sql"
	"fmt"
)

// InTx runs fn inside a transaction on one storage partition, committing on
// success and rolling back on every other exit path, including panics. A
// transient failure (conflict, deadlock, bad connection) aborts the
// transaction and retries the whole unit of work under p.
//
// The two partitions in this system are not jointly transactional: a unit of
// work passed here must touch exactly one of them. Cross-partition effects
// belong to the saga orchestrator, which compensates them manually.
func InTx(ctx context.Context, db *sql.DB, p Policy, fn func(tx *sql.Tx) error) error {
	return Do(ctx, p, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}
