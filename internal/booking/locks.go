package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// LockResult describes a successful AcquireLocks call.  Every seat in
// SeatIDs is held by Holder until ExpiresAt.
type LockResult struct {
	ShowID    uint64
	SeatIDs   []uint64
	Holder    string
	ExpiresAt time.Time
}

// AcquireLocks places or renews holds on seatIDs for holder.  Either all
// requested seats end up held until the returned expiry or nothing changes.
//
// Locks of the same holder are renewed rather than duplicated, expired
// locks are replaced, and a seat held by someone else or already booked
// fails the whole call with a *ConflictError naming the seats.
func (s *Service) AcquireLocks(ctx context.Context, showID uint64, seatIDs []uint64, holder string) (*LockResult, error) {
	holder = NormalizeHolder(holder)
	var res *LockResult
	err := s.tx.WithTx(ctx, seatTxOptions, func(ctx context.Context) error {
		_, ids, err := s.validate(ctx, showID, seatIDs)
		if err != nil {
			return err
		}
		if holder == "" {
			return fmt.Errorf("lock holder: %w", ErrUnauthorized)
		}

		// The lock rows are read first: a confirm holding them commits its
		// booking before this read returns, so the booked check below sees it.
		now := s.clock.Now()
		existing, err := s.locks.ListForUpdate(ctx, showID, ids)
		if err != nil {
			return fmt.Errorf("read locks: %w", err)
		}
		booked, err := s.bookings.BookedSeatIDs(ctx, showID, ids)
		if err != nil {
			return fmt.Errorf("check booked seats: %w", err)
		}
		if len(booked) > 0 {
			return conflict(ReasonAlreadyBooked, booked)
		}
		var stale, renew, contested []uint64
		kept := make(map[uint64]struct{}, len(existing))
		for _, l := range existing {
			switch {
			case l.Expired(now):
				stale = append(stale, l.ID)
			case l.Holder != holder:
				contested = append(contested, l.SeatID)
			default:
				renew = append(renew, l.ID)
				kept[l.SeatID] = struct{}{}
			}
		}
		if len(contested) > 0 {
			return conflict(ReasonLockedByOther, contested)
		}

		expiresAt := now.Add(s.holdDuration)
		if err := s.locks.DeleteByIDs(ctx, stale); err != nil {
			return fmt.Errorf("drop expired locks: %w", err)
		}
		if err := s.locks.ExtendByIDs(ctx, renew, expiresAt); err != nil {
			return fmt.Errorf("renew locks: %w", err)
		}
		fresh := lo.Filter(ids, func(id uint64, _ int) bool {
			_, ok := kept[id]
			return !ok
		})
		rows := lo.Map(fresh, func(id uint64, _ int) model.SeatLock {
			return model.SeatLock{ShowID: showID, SeatID: id, Holder: holder, ExpiresAt: expiresAt, CreatedAt: now}
		})
		if err := s.locks.InsertBulk(ctx, rows); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// another holder inserted between our read and write
				return conflict(ReasonLockedByOther, fresh)
			}
			return fmt.Errorf("insert locks: %w", err)
		}
		res = &LockResult{ShowID: showID, SeatIDs: ids, Holder: holder, ExpiresAt: expiresAt}
		return nil
	})
	err = storeError(err)
	metrics.LockRequests.WithLabelValues(outcome(err)).Inc()
	logOutcome(ctx, "acquire_locks", err)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, showID)
	return res, nil
}

// ReleaseLocks drops every lock holder has on the show and returns how many
// were removed.  Releasing nothing is not an error.
func (s *Service) ReleaseLocks(ctx context.Context, showID uint64, holder string) (int64, error) {
	holder = NormalizeHolder(holder)
	if holder == "" {
		return 0, fmt.Errorf("lock holder: %w", ErrUnauthorized)
	}
	if _, err := s.loadShow(ctx, showID); err != nil {
		return 0, err
	}
	n, err := s.locks.DeleteByHolder(ctx, showID, holder)
	if err != nil {
		return 0, fmt.Errorf("release locks: %w", storeError(err))
	}
	if n > 0 {
		s.invalidate(ctx, showID)
	}
	return n, nil
}
