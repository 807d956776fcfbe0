package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ShowRepo manages persistence for shows.  Every method joins the
// transaction carried by ctx when there is one.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

const showColumns = `id, movie_id, screen_id, starts_at, price_cents, created_at, updated_at`

func scanShow(row interface{ Scan(...any) error }, s *model.Show) error {
	return row.Scan(&s.ID, &s.MovieID, &s.ScreenID, &s.StartsAt, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	var s model.Show
	err := scanShow(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id), &s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetForUpdate is GetByID with the row locked until the surrounding
// transaction ends.
func (r *ShowRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Show, error) {
	var s model.Show
	err := scanShow(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ? FOR UPDATE`, id), &s)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, mapError(err)
	}
	return &s, nil
}

const showDetailQuery = `SELECT s.id, s.movie_id, m.title, m.duration_minutes,
                                s.screen_id, sc.name, t.id, t.name,
                                s.starts_at, s.price_cents
                         FROM shows s
                         JOIN movies m ON m.id = s.movie_id
                         JOIN screens sc ON sc.id = s.screen_id
                         JOIN theaters t ON t.id = sc.theater_id`

func scanShowDetail(row interface{ Scan(...any) error }) (model.ShowDetail, error) {
	var d model.ShowDetail
	err := row.Scan(&d.ID, &d.MovieID, &d.MovieTitle, &d.DurationMinutes,
		&d.ScreenID, &d.ScreenName, &d.TheaterID, &d.TheaterName,
		&d.StartsAt, &d.PriceCents)
	d.EndsAt = d.StartsAt.Add(time.Duration(d.DurationMinutes) * time.Minute)
	return d, err
}

// GetDetail returns the show joined with its movie, screen and theater.
func (r *ShowRepo) GetDetail(ctx context.Context, id uint64) (*model.ShowDetail, error) {
	d, err := scanShowDetail(conn(ctx, r.db).QueryRowContext(ctx, showDetailQuery+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByScreen returns all shows of a screen ordered by start time.  When
// no shows exist it returns an empty slice and nil error.
func (r *ShowRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.ShowDetail, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, showDetailQuery+` WHERE s.screen_id = ? ORDER BY s.starts_at ASC`, screenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []model.ShowDetail{}
	for rows.Next() {
		d, err := scanShowDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FindOverlapping returns the shows on screenID, other than excludeID,
// whose running interval [starts_at, starts_at + movie duration) overlaps
// [start, end).  Pass excludeID 0 when scheduling a new show.
func (r *ShowRepo) FindOverlapping(ctx context.Context, screenID, excludeID uint64, start, end time.Time) ([]model.Show, error) {
	const q = `SELECT s.id, s.movie_id, s.screen_id, s.starts_at, s.price_cents, s.created_at, s.updated_at
               FROM shows s
               JOIN movies m ON m.id = s.movie_id
               WHERE s.screen_id = ? AND s.id <> ?
                 AND s.starts_at < ?
                 AND DATE_ADD(s.starts_at, INTERVAL m.duration_minutes MINUTE) > ?`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, screenID, excludeID, end.UTC(), start.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overlaps []model.Show
	for rows.Next() {
		var s model.Show
		if err := scanShow(rows, &s); err != nil {
			return nil, err
		}
		overlaps = append(overlaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// Create inserts a new show and populates its ID and timestamps.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO shows (movie_id, screen_id, starts_at, price_cents) VALUES (?, ?, ?, ?)`,
		s.MovieID, s.ScreenID, s.StartsAt.UTC(), s.PriceCents)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query the inserted row to obtain the DB-default timestamps.
	return scanShow(q.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, s.ID), s)
}

// Reschedule updates the start time and price of a show.  It returns
// ErrShowNotFound when the show does not exist.
func (r *ShowRepo) Reschedule(ctx context.Context, id uint64, startsAt time.Time, priceCents uint32) error {
	q := conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`UPDATE shows SET starts_at = ?, price_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		startsAt.UTC(), priceCents, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	if err := q.QueryRowContext(ctx, `SELECT 1 FROM shows WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrShowNotFound
		}
		return err
	}
	return ErrNoChange
}

// Delete removes a show.  If any booking or seat lock references it the
// deletion is refused with ErrConflict; a missing show is ErrShowNotFound.
// Run it inside a transaction so the dependency check and the delete see
// the same rows.
func (r *ShowRepo) Delete(ctx context.Context, id uint64) error {
	q := conn(ctx, r.db)
	var deps int
	const depQ = `SELECT (SELECT COUNT(*) FROM bookings WHERE show_id = ?) +
                         (SELECT COUNT(*) FROM seat_locks WHERE show_id = ?)`
	if err := q.QueryRowContext(ctx, depQ, id, id).Scan(&deps); err != nil {
		return err
	}
	if deps > 0 {
		return ErrConflict
	}
	res, err := q.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrShowNotFound
	}
	return nil
}
