package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// SeatRepo provides read access to the seats of a screen.  Seats are
// provisioned out of band; the API never creates them.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

func scanSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.ScreenID, &s.RowLabel, &s.SeatNumber, &s.Disabled); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// GetByIDs returns the seats with the given ids.  Unknown ids are simply
// absent from the result.
func (r *SeatRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids)
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, screen_id, row_label, seat_number, disabled FROM seats WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}

// ListByScreen retrieves all seats of a screen ordered by row_label then
// seat_number.
func (r *SeatRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	const q = `SELECT id, screen_id, row_label, seat_number, disabled
	           FROM seats
	           WHERE screen_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, screenID)
	if err != nil {
		return nil, err
	}
	return scanSeats(rows)
}
