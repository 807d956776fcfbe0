package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// Confirmation is the result of a successful Confirm.
type Confirmation struct {
	Booking model.Booking
	SeatIDs []uint64
}

// seatTxOptions is used by every transaction that changes seat state.
// Row locks and unique keys do the arbitration; read committed avoids the
// gap locks of repeatable read and lets plain reads taken after a FOR
// UPDATE see bookings committed while it waited.
var seatTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// Confirm turns the caller's valid locks on seatIDs into a confirmed
// booking.  The lock check, the booked-seat check, the booking insert and
// the lock removal commit together or not at all.
//
// A failed confirmation leaves the caller's locks untouched; they age out
// at their expiry.
func (s *Service) Confirm(ctx context.Context, showID uint64, seatIDs []uint64, userID uint64, holder string) (*Confirmation, error) {
	started := time.Now()
	holder = NormalizeHolder(holder)
	var res *Confirmation
	err := s.tx.WithTx(ctx, seatTxOptions, func(ctx context.Context) error {
		show, ids, err := s.validate(ctx, showID, seatIDs)
		if err != nil {
			return err
		}
		if userID == 0 || holder == "" {
			return fmt.Errorf("booking owner: %w", ErrUnauthorized)
		}

		now := s.clock.Now()
		held, err := s.locks.ListHeldForUpdate(ctx, showID, ids, holder, now)
		if err != nil {
			return fmt.Errorf("read locks: %w", err)
		}
		if len(held) != len(ids) {
			covered := lo.Map(held, func(l model.SeatLock, _ int) uint64 { return l.SeatID })
			return conflict(ReasonMissingLocks, lo.Without(ids, covered...))
		}
		booked, err := s.bookings.BookedSeatIDs(ctx, showID, ids)
		if err != nil {
			return fmt.Errorf("check booked seats: %w", err)
		}
		if len(booked) > 0 {
			return conflict(ReasonAlreadyBooked, booked)
		}

		// Bookings are confirmed without payment capture.  A payment step
		// would insert BookingPending here and flip it once captured; the
		// seats are claimed either way.
		b := &model.Booking{
			ShowID:           showID,
			UserID:           userID,
			Holder:           holder,
			Status:           model.BookingConfirmed,
			TotalAmountCents: uint64(show.PriceCents) * uint64(len(ids)),
			CreatedAt:        now,
		}
		if err := s.bookings.Create(ctx, b, ids); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict(ReasonAlreadyBooked, ids)
			}
			return fmt.Errorf("create booking: %w", err)
		}
		lockIDs := lo.Map(held, func(l model.SeatLock, _ int) uint64 { return l.ID })
		if err := s.locks.DeleteByIDs(ctx, lockIDs); err != nil {
			return fmt.Errorf("consume locks: %w", err)
		}
		res = &Confirmation{Booking: *b, SeatIDs: ids}
		return nil
	})
	err = storeError(err)
	metrics.ConfirmRequests.WithLabelValues(outcome(err)).Inc()
	logOutcome(ctx, "confirm", err)
	if err != nil {
		return nil, err
	}
	metrics.ConfirmDuration.Observe(time.Since(started).Seconds())
	metrics.SeatsBooked.Add(float64(len(res.SeatIDs)))
	s.invalidate(ctx, showID)
	if s.publisher != nil {
		if perr := s.publisher.BookingConfirmed(ctx, res.Booking, res.SeatIDs); perr != nil {
			logging.FromContext(ctx).WithError(perr).WithField("booking_id", res.Booking.ID).Warn("publish booking.confirmed failed")
		}
	}
	return res, nil
}

// CancelBooking cancels a booking owned by userID before its show starts.
// The seats become lockable again once the cancellation commits.
func (s *Service) CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	if userID == 0 {
		return nil, fmt.Errorf("booking owner: %w", ErrUnauthorized)
	}
	var (
		b       *model.Booking
		seatIDs []uint64
	)
	err := s.tx.WithTx(ctx, seatTxOptions, func(ctx context.Context) error {
		var err error
		b, err = s.bookings.GetForUpdate(ctx, bookingID)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if b.UserID != userID {
			return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
		}
		if b.Status == model.BookingCancelled {
			return conflict(ReasonAlreadyCancel, nil)
		}
		show, err := s.loadShow(ctx, b.ShowID)
		if err != nil {
			return err
		}
		if !s.clock.Now().Before(show.StartsAt) {
			return conflict(ReasonShowStarted, nil)
		}
		if seatIDs, err = s.bookings.SeatIDs(ctx, bookingID); err != nil {
			return fmt.Errorf("load booking seats: %w", err)
		}
		if err := s.bookings.Cancel(ctx, bookingID); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		b.Status = model.BookingCancelled
		return nil
	})
	err = storeError(err)
	logOutcome(ctx, "cancel_booking", err)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, b.ShowID)
	if s.publisher != nil {
		if perr := s.publisher.BookingCancelled(ctx, *b, seatIDs); perr != nil {
			logging.FromContext(ctx).WithError(perr).WithField("booking_id", b.ID).Warn("publish booking.cancelled failed")
		}
	}
	return b, nil
}
