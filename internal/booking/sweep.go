package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
	"github.com/iliyamo/cinema-ticket-booking/internal/metrics"
)

// SweepExpired deletes every lock whose expiry is not after now and returns
// the number removed.  Expired locks are already invisible to every other
// operation, so concurrent sweeps only race to delete dead rows.
//
// Cached seat maps need no invalidation: their lifetime is capped at the
// earliest lock expiry of the show.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.locks.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired locks: %w", err)
	}
	if n > 0 {
		metrics.LocksSwept.Add(float64(n))
		logging.FromContext(ctx).WithField("removed", n).Info("expired seat locks swept")
	}
	return n, nil
}
