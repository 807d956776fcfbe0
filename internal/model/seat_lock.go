package model

import "time"

// SeatLock is a soft, time-boxed claim on a seat for a show.  At most one
// row exists per (show, seat); a lock whose ExpiresAt is not after the
// current time is dead and may be replaced or swept.
//
// Fields:
//  ID        – primary key identifier.
//  ShowID    – show for which the seat is held.
//  SeatID    – seat being held.
//  Holder    – normalized (lower-case) email of the holder.
//  ExpiresAt – expiry in UTC.
//  CreatedAt – when the lock row was first inserted.
type SeatLock struct {
	ID        uint64    // seat_locks.id
	ShowID    uint64    // seat_locks.show_id
	SeatID    uint64    // seat_locks.seat_id
	Holder    string    // seat_locks.holder
	ExpiresAt time.Time // seat_locks.expires_at
	CreatedAt time.Time // seat_locks.created_at
}

// Expired reports whether the lock is dead at now.
func (l SeatLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
