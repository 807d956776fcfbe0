package booking

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// Transactor runs fn inside a database transaction.  Repository calls
// made with the ctx passed to fn join that transaction.  The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error
}

// ShowReader looks up shows.  A missing show is repository.ErrShowNotFound.
type ShowReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Show, error)
}

// SeatReader looks up seats of the catalog.
type SeatReader interface {
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error)
	ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error)
}

// LockStore persists seat locks.  InsertBulk must report a unique-key
// violation on (show_id, seat_id) as repository.ErrDuplicate.
type LockStore interface {
	ListForUpdate(ctx context.Context, showID uint64, seatIDs []uint64) ([]model.SeatLock, error)
	ListHeldForUpdate(ctx context.Context, showID uint64, seatIDs []uint64, holder string, now time.Time) ([]model.SeatLock, error)
	ListActiveByShow(ctx context.Context, showID uint64, now time.Time) ([]model.SeatLock, error)
	InsertBulk(ctx context.Context, locks []model.SeatLock) error
	ExtendByIDs(ctx context.Context, ids []uint64, expiresAt time.Time) error
	DeleteByIDs(ctx context.Context, ids []uint64) error
	DeleteByHolder(ctx context.Context, showID uint64, holder string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BookingStore persists bookings and their seats.  Create must report a
// seat already attached to a live booking of the show as
// repository.ErrDuplicate.
type BookingStore interface {
	BookedSeatIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]uint64, error)
	ListBookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error)
	Create(ctx context.Context, b *model.Booking, seatIDs []uint64) error
	GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error)
	Cancel(ctx context.Context, id uint64) error
	SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.BookingSummary, error)
	GetByIDForUser(ctx context.Context, id, userID uint64) (*model.BookingSummary, error)
}

// Repositories bundles the persistence collaborators of the Service.
type Repositories struct {
	Tx       Transactor
	Shows    ShowReader
	Seats    SeatReader
	Locks    LockStore
	Bookings BookingStore
}

// EventPublisher is notified after a booking transaction commits.
// Failures are logged and never undo the booking.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, b model.Booking, seatIDs []uint64) error
	BookingCancelled(ctx context.Context, b model.Booking, seatIDs []uint64) error
}

// AvailabilityCache stores seat maps per show.  Every Invalidate advances
// the show's generation; Set must drop the write when the generation is no
// longer gen, so a map loaded before a concurrent change is never stored.
type AvailabilityCache interface {
	Get(ctx context.Context, showID uint64) ([]model.SeatAvailability, bool)
	Generation(ctx context.Context, showID uint64) (gen int64, ok bool)
	Set(ctx context.Context, showID uint64, gen int64, seats []model.SeatAvailability, ttl time.Duration)
	Invalidate(ctx context.Context, showID uint64)
}
