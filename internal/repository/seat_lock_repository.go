package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// SeatLockRepo provides data access to the seat_locks table.  The table
// carries a unique key on (show_id, seat_id), so at most one lock row
// exists per seat of a show.  All timestamps are UTC; callers pass the
// current time explicitly so that expiry decisions follow one clock.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

const lockColumns = `id, show_id, seat_id, holder, expires_at, created_at`

func (r *SeatLockRepo) list(ctx context.Context, q string, args ...any) ([]model.SeatLock, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var locks []model.SeatLock
	for rows.Next() {
		var l model.SeatLock
		if err := rows.Scan(&l.ID, &l.ShowID, &l.SeatID, &l.Holder, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return locks, nil
}

// ListForUpdate returns the lock rows of the given seats, expired or not,
// and locks them until the surrounding transaction ends.
func (r *SeatLockRepo) ListForUpdate(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.SeatLock, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(seatIDs)
	q := `SELECT ` + lockColumns + ` FROM seat_locks
	      WHERE show_id = ? AND seat_id IN (` + in + `)
	      ORDER BY seat_id FOR UPDATE`
	return r.list(ctx, q, append([]any{showID}, args...)...)
}

// ListHeldForUpdate returns the locks on the given seats that belong to
// holder and are still valid at now, locking them for the surrounding
// transaction.  Use this when confirming a booking.
func (r *SeatLockRepo) ListHeldForUpdate(ctx context.Context, showID uint64, seatIDs []uint64, holder string, now time.Time) ([]model.SeatLock, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(seatIDs)
	q := `SELECT ` + lockColumns + ` FROM seat_locks
	      WHERE show_id = ? AND seat_id IN (` + in + `) AND holder = ? AND expires_at > ?
	      ORDER BY seat_id FOR UPDATE`
	all := append([]any{showID}, args...)
	all = append(all, holder, now.UTC())
	return r.list(ctx, q, all...)
}

// ListActiveByShow returns every lock of the show still valid at now.
func (r *SeatLockRepo) ListActiveByShow(ctx context.Context, showID uint64, now time.Time) ([]model.SeatLock, error) {
	q := `SELECT ` + lockColumns + ` FROM seat_locks WHERE show_id = ? AND expires_at > ? ORDER BY seat_id`
	return r.list(ctx, q, showID, now.UTC())
}

// InsertBulk inserts the locks in a single statement.  A row that
// collides with an existing (show_id, seat_id) fails the whole statement
// with ErrDuplicate.  Passing an empty slice has no effect and returns nil.
func (r *SeatLockRepo) InsertBulk(ctx context.Context, locks []model.SeatLock) error {
	if len(locks) == 0 {
		return nil
	}
	query := `INSERT INTO seat_locks (show_id, seat_id, holder, expires_at, created_at) VALUES `
	args := make([]any, 0, len(locks)*5)
	for i, l := range locks {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, l.ShowID, l.SeatID, l.Holder, l.ExpiresAt.UTC(), l.CreatedAt.UTC())
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	return mapError(err)
}

// ExtendByIDs moves the expiry of the given locks to expiresAt.
func (r *SeatLockRepo) ExtendByIDs(ctx context.Context, ids []uint64, expiresAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE seat_locks SET expires_at = ? WHERE id IN (`+in+`)`,
		append([]any{expiresAt.UTC()}, args...)...)
	return mapError(err)
}

// DeleteByIDs removes the given lock rows.
func (r *SeatLockRepo) DeleteByIDs(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM seat_locks WHERE id IN (`+in+`)`, args...)
	return mapError(err)
}

// DeleteByHolder removes every lock holder has on the show and returns
// the number of rows removed.
func (r *SeatLockRepo) DeleteByHolder(ctx context.Context, showID uint64, holder string) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM seat_locks WHERE show_id = ? AND holder = ?`, showID, holder)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes all locks whose expiry is not after now, across
// every show, and returns the number of rows removed.
func (r *SeatLockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM seat_locks WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
