package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// ShowSearchQuery defines filters & pagination for searching shows.
type ShowSearchQuery struct {
	Title    string
	Theater  string
	Screen   string
	From     time.Time // only shows starting at or after From
	Page     int
	PageSize int
}

// Search lists upcoming shows matching q ordered by start time, together
// with the total number of matches.  Text filters are case-insensitive
// substring matches.
func (r *ShowRepo) Search(ctx context.Context, q ShowSearchQuery) ([]model.ShowDetail, int64, error) {
	where := []string{"s.starts_at >= ?"}
	args := []any{q.From.UTC()}

	if q.Title != "" {
		where = append(where, "LOWER(m.title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Theater != "" {
		where = append(where, "LOWER(t.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Theater)+"%")
	}
	if q.Screen != "" {
		where = append(where, "LOWER(sc.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Screen)+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM shows s
		JOIN movies m   ON m.id = s.movie_id
		JOIN screens sc ON sc.id = s.screen_id
		JOIN theaters t ON t.id = sc.theater_id
		WHERE ` + cond
	if err := conn(ctx, r.db).QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize
	dataSQL := showDetailQuery + ` WHERE ` + cond + ` ORDER BY s.starts_at ASC, s.id ASC LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := conn(ctx, r.db).QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.ShowDetail, 0, limit)
	for rows.Next() {
		d, err := scanShowDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
