package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// GetSeatAvailability returns every seat on the show's screen with its
// booked and locked flags.  Only active locks count.
func (s *Service) GetSeatAvailability(ctx context.Context, showID uint64) ([]model.SeatAvailability, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		if seats, ok := s.cache.Get(ctx, showID); ok {
			metrics.SeatMapCache.WithLabelValues("hit").Inc()
			return seats, nil
		}
		metrics.SeatMapCache.WithLabelValues("miss").Inc()
		// read before storage so a change committed meanwhile rejects the write
		gen, cacheable = s.cache.Generation(ctx, showID)
	}
	show, err := s.loadShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	seats, err := s.seats.ListByScreen(ctx, show.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	booked, err := s.bookings.ListBookedSeatIDs(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("list booked seats: %w", err)
	}
	now := s.clock.Now()
	locks, err := s.locks.ListActiveByShow(ctx, showID, now)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	bookedSet := make(map[uint64]struct{}, len(booked))
	for _, id := range booked {
		bookedSet[id] = struct{}{}
	}
	ttl := s.cacheTTL
	lockedSet := make(map[uint64]struct{}, len(locks))
	for _, l := range locks {
		lockedSet[l.SeatID] = struct{}{}
		if left := l.ExpiresAt.Sub(now); left < ttl {
			ttl = left
		}
	}
	out := make([]model.SeatAvailability, 0, len(seats))
	for _, st := range seats {
		_, isBooked := bookedSet[st.ID]
		_, isLocked := lockedSet[st.ID]
		out = append(out, model.SeatAvailability{
			SeatID:     st.ID,
			RowLabel:   st.RowLabel,
			SeatNumber: st.SeatNumber,
			Disabled:   st.Disabled,
			IsBooked:   isBooked,
			IsLocked:   isLocked,
		})
	}
	if cacheable && ttl > 0 {
		s.cache.Set(ctx, showID, gen, out, ttl)
	}
	return out, nil
}

// ListBookingsForUser returns the user's bookings, newest first.
func (s *Service) ListBookingsForUser(ctx context.Context, userID uint64) ([]model.BookingSummary, error) {
	if userID == 0 {
		return nil, fmt.Errorf("booking owner: %w", ErrUnauthorized)
	}
	items, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if items == nil {
		items = []model.BookingSummary{}
	}
	return items, nil
}

// GetBooking returns one booking of userID.  A booking owned by someone
// else is reported as not found.
func (s *Service) GetBooking(ctx context.Context, bookingID, userID uint64) (*model.BookingSummary, error) {
	if userID == 0 {
		return nil, fmt.Errorf("booking owner: %w", ErrUnauthorized)
	}
	item, err := s.bookings.GetByIDForUser(ctx, bookingID, userID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return item, nil
}
