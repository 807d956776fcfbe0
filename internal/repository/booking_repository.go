package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ErrBookingNotFound is returned when a booking does not exist or, for
// the user-scoped lookups, belongs to someone else.
var ErrBookingNotFound = errors.New("booking not found")

// BookingRepo provides access to bookings and their seats.  Seats booked
// under a booking are stored in booking_seats with an active marker: 1
// while the booking holds the seat, NULL once it is cancelled.  The
// unique key on booking_seats(show_id, seat_id, active) therefore admits
// one live claim per seat of a show and any number of cancelled ones.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookedSeatIDs returns the subset of seatIDs held by a live booking of
// the show.
func (r *BookingRepo) BookedSeatIDs(ctx context.Context, showID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	in, args := inClause(seatIDs)
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE show_id = ? AND active = 1 AND seat_id IN (`+in+`) ORDER BY seat_id`,
		append([]any{showID}, args...)...)
	if err != nil {
		return nil, mapError(err)
	}
	return scanIDs(rows)
}

// ListBookedSeatIDs returns every seat held by a live booking of the show.
func (r *BookingRepo) ListBookedSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE show_id = ? AND active = 1 ORDER BY seat_id`, showID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// Create inserts the booking and one booking_seats row per seat and
// populates b.ID.  Run it inside a transaction: a seat already held by a
// live booking of the show fails with ErrDuplicate and the caller must
// roll back.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, seatIDs []uint64) error {
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO bookings (show_id, user_id, holder, status, total_amount_cents, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.ShowID, b.UserID, b.Holder, string(b.Status), b.TotalAmountCents, b.CreatedAt.UTC())
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, show_id, seat_id, active) VALUES `
	args := make([]any, 0, len(seatIDs)*3)
	for i, sid := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, 1)"
		args = append(args, b.ID, b.ShowID, sid)
	}
	_, err = q.ExecContext(ctx, query, args...)
	return mapError(err)
}

// GetForUpdate loads a booking and locks its row for the surrounding
// transaction.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, show_id, user_id, holder, status, total_amount_cents, created_at
	           FROM bookings WHERE id = ? FOR UPDATE`
	var (
		b      model.Booking
		status string
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.ShowID, &b.UserID, &b.Holder, &status, &b.TotalAmountCents, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, mapError(err)
	}
	b.Status = model.BookingStatus(status)
	return &b, nil
}

// Cancel marks the booking cancelled and releases its seats.  Run it
// inside a transaction.
func (r *BookingRepo) Cancel(ctx context.Context, id uint64) error {
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, string(model.BookingCancelled), id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	_, err = q.ExecContext(ctx, `UPDATE booking_seats SET active = NULL WHERE booking_id = ?`, id)
	return mapError(err)
}

// SeatIDs returns the seats of a booking.
func (r *BookingRepo) SeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`, bookingID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

const summaryQuery = `SELECT b.id, b.show_id, b.status, b.total_amount_cents, b.created_at,
                             m.title, s.starts_at, sc.id, sc.name, t.name
                      FROM bookings b
                      JOIN shows s ON s.id = b.show_id
                      JOIN movies m ON m.id = s.movie_id
                      JOIN screens sc ON sc.id = s.screen_id
                      JOIN theaters t ON t.id = sc.theater_id`

func scanSummary(row interface{ Scan(...any) error }) (model.BookingSummary, error) {
	var (
		s      model.BookingSummary
		status string
	)
	err := row.Scan(&s.ID, &s.ShowID, &status, &s.TotalAmountCents, &s.CreatedAt,
		&s.MovieTitle, &s.StartsAt, &s.ScreenID, &s.ScreenName, &s.TheaterName)
	s.Status = model.BookingStatus(status)
	s.Seats = []model.BookedSeat{}
	return s, err
}

// ListByUser returns all bookings created by the user, newest first, with
// show, movie, screen, theater and seat details.  When the user has no
// bookings it returns an empty slice.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingSummary, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, summaryQuery+` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []model.BookingSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachSeats(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByIDForUser returns a single booking of the given user.  A booking
// owned by someone else is reported as ErrBookingNotFound.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.BookingSummary, error) {
	s, err := scanSummary(conn(ctx, r.db).QueryRowContext(ctx, summaryQuery+` WHERE b.id = ? AND b.user_id = ?`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	items := []model.BookingSummary{s}
	if err := r.attachSeats(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// attachSeats loads the seats of all items with one query.
func (r *BookingRepo) attachSeats(ctx context.Context, items []model.BookingSummary) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(items))
	ids := make([]uint64, len(items))
	for i, it := range items {
		index[it.ID] = i
		ids[i] = it.ID
	}
	in, args := inClause(ids)
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT bs.booking_id, bs.seat_id, se.row_label, se.seat_number
		 FROM booking_seats bs
		 JOIN seats se ON se.id = bs.seat_id
		 WHERE bs.booking_id IN (`+in+`)
		 ORDER BY bs.booking_id, se.row_label, se.seat_number`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			bookingID uint64
			seat      model.BookedSeat
		)
		if err := rows.Scan(&bookingID, &seat.SeatID, &seat.RowLabel, &seat.SeatNumber); err != nil {
			return err
		}
		if i, ok := index[bookingID]; ok {
			items[i].Seats = append(items[i].Seats, seat)
		}
	}
	return rows.Err()
}
