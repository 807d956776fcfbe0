// Package repository implements MySQL persistence for the catalog, seat
// locks, bookings and identity tables.  Sentinel errors below let higher
// layers tell failure scenarios apart without inspecting driver errors.
// For example, ErrDuplicate reports a unique-key violation, which the
// booking service turns into a seat conflict, while ErrConflict signals
// that a delete was refused because dependent rows exist.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate key")

// ErrDeadlock is returned when MySQL aborts a statement because of a
// deadlock or a lock wait timeout.  The transaction has been rolled back
// and may be retried by the caller.
var ErrDeadlock = errors.New("lock contention")

// ErrConflict is returned when a delete cannot be performed because of
// dependent records, such as deleting a show that still has bookings.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNoChange indicates that an UPDATE matched the row but changed nothing.
var ErrNoChange = errors.New("no change")

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
	errRowIsReferenced = 1451
)

// mapError translates driver errors into the sentinels above.  The
// original error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDupEntry:
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	case errLockDeadlock, errLockWaitTimeout:
		return fmt.Errorf("%w: %w", ErrDeadlock, err)
	case errRowIsReferenced:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
