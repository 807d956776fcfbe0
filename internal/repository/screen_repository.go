package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ErrScreenNotFound is returned when a screen lookup fails.
var ErrScreenNotFound = errors.New("screen not found")

// ScreenRepo reads screens.  Theaters and screens are provisioned out of
// band, so there are no write methods.
type ScreenRepo struct {
	db *sql.DB
}

// NewScreenRepo constructs a ScreenRepo with the given DB handle.
func NewScreenRepo(db *sql.DB) *ScreenRepo {
	return &ScreenRepo{db: db}
}

// GetByID returns the screen with the given id or ErrScreenNotFound.
func (r *ScreenRepo) GetByID(ctx context.Context, id uint64) (*model.Screen, error) {
	return r.get(ctx, `SELECT id, theater_id, name, created_at FROM screens WHERE id = ?`, id)
}

// GetForUpdate locks the screen row until the surrounding transaction
// ends.  Schedulers take this lock so that two overlap checks for the same
// screen cannot interleave.
func (r *ScreenRepo) GetForUpdate(ctx context.Context, id uint64) (*model.Screen, error) {
	return r.get(ctx, `SELECT id, theater_id, name, created_at FROM screens WHERE id = ? FOR UPDATE`, id)
}

func (r *ScreenRepo) get(ctx context.Context, q string, id uint64) (*model.Screen, error) {
	var s model.Screen
	if err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&s.ID, &s.TheaterID, &s.Name, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScreenNotFound
		}
		return nil, mapError(err)
	}
	return &s, nil
}
