package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
	"github.com/iliyamo/cinema-ticket-booking/internal/repository"
)

// normalizeSeatIDs drops zero ids and duplicates, keeping request order.
func normalizeSeatIDs(ids []uint64) []uint64 {
	return lo.Uniq(lo.Filter(ids, func(id uint64, _ int) bool { return id > 0 }))
}

// ValidateSeats checks that the show exists and every requested seat sits
// on its screen and is selectable.  It has no side effects.
func (s *Service) ValidateSeats(ctx context.Context, showID uint64, seatIDs []uint64) error {
	_, _, err := s.validate(ctx, showID, seatIDs)
	return err
}

// validate returns the show and the normalised seat ids.  When ctx carries
// a transaction the reads join it.
func (s *Service) validate(ctx context.Context, showID uint64, seatIDs []uint64) (*model.Show, []uint64, error) {
	ids := normalizeSeatIDs(seatIDs)
	if len(ids) == 0 {
		return nil, nil, invalid("no valid seat ids provided", nil)
	}
	show, err := s.loadShow(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	seats, err := s.seats.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load seats: %w", err)
	}
	byID := lo.Associate(seats, func(st model.Seat) (uint64, model.Seat) { return st.ID, st })
	var foreign, disabled []uint64
	for _, id := range ids {
		st, ok := byID[id]
		switch {
		case !ok || st.ScreenID != show.ScreenID:
			foreign = append(foreign, id)
		case st.Disabled:
			disabled = append(disabled, id)
		}
	}
	if len(foreign) > 0 {
		return nil, nil, invalid("seats do not belong to the show's screen", foreign)
	}
	if len(disabled) > 0 {
		return nil, nil, invalid("seats are disabled", disabled)
	}
	return show, ids, nil
}

func (s *Service) loadShow(ctx context.Context, showID uint64) (*model.Show, error) {
	if showID == 0 {
		return nil, fmt.Errorf("show %d: %w", showID, ErrNotFound)
	}
	show, err := s.shows.GetByID(ctx, showID)
	if errors.Is(err, repository.ErrShowNotFound) {
		return nil, fmt.Errorf("show %d: %w", showID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load show: %w", err)
	}
	return show, nil
}
