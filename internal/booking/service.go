// Package booking implements the seat-locking and booking-confirmation
// protocol.  A seat of a show moves from free to locked (a short renewable
// hold owned by one holder) and from locked to booked.  Every transition
// runs inside a storage transaction; unique keys on the lock and booking
// seat tables arbitrate races between server instances, so the package
// keeps no in-process lock over seat state.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/clock"
	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// DefaultHoldDuration is how long a seat lock lasts after it is acquired
// or renewed.
const DefaultHoldDuration = 5 * time.Minute

// DefaultCacheTTL bounds how long a seat map stays cached.
const DefaultCacheTTL = 30 * time.Second

// Service exposes the booking operations.  It is safe for concurrent use.
type Service struct {
	tx       Transactor
	shows    ShowReader
	seats    SeatReader
	locks    LockStore
	bookings BookingStore

	clock        clock.Clock
	holdDuration time.Duration
	publisher    EventPublisher
	cache        AvailabilityCache
	cacheTTL     time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithHoldDuration overrides DefaultHoldDuration.  Non-positive values are
// ignored.
func WithHoldDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdDuration = d
		}
	}
}

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPublisher registers the sink for booking events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCache serves seat maps through c.  Entries live at most ttl and
// never beyond the earliest active lock expiry of the show.  A map loaded
// while a lock or booking change commits is not stored.
func WithCache(c AvailabilityCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewService builds a Service over repos.  All repositories are required.
func NewService(repos Repositories, opts ...Option) *Service {
	if repos.Tx == nil || repos.Shows == nil || repos.Seats == nil || repos.Locks == nil || repos.Bookings == nil {
		panic("nil repository passed to booking.NewService")
	}
	s := &Service{
		tx:           repos.Tx,
		shows:        repos.Shows,
		seats:        repos.Seats,
		locks:        repos.Locks,
		bookings:     repos.Bookings,
		clock:        clock.Real(),
		holdDuration: DefaultHoldDuration,
		cacheTTL:     DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HoldDuration reports the configured lock lifetime.
func (s *Service) HoldDuration() time.Duration { return s.holdDuration }

// NormalizeHolder canonicalises a holder identity (an e-mail address).
func NormalizeHolder(holder string) string {
	return strings.ToLower(strings.TrimSpace(holder))
}

// storeError maps storage races that escaped the explicit checks onto
// Conflict.  Errors that already carry a kind pass through.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, repository.ErrDeadlock) || errors.Is(err, repository.ErrDuplicate) {
		return conflict(ReasonContention, nil)
	}
	return err
}

func (s *Service) invalidate(ctx context.Context, showID uint64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, showID)
	}
}

// outcome labels err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func logOutcome(ctx context.Context, op string, err error) {
	l := logging.FromContext(ctx).WithField("op", op)
	switch outcome(err) {
	case "ok":
	case "error":
		l.WithError(err).Error("booking operation failed")
	default:
		l.WithError(err).Info("booking operation rejected")
	}
}
