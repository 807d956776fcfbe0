package model

import "time"

// Movie is a catalog entry that shows are scheduled for.  The duration
// decides how long a show occupies its screen.
//
// Fields:
//  ID              – primary key identifier.
//  Title           – display title.
//  DurationMinutes – running time in minutes (always > 0).
//  CreatedAt       – creation timestamp.
type Movie struct {
	ID              uint64    // movies.id
	Title           string    // movies.title
	DurationMinutes uint32    // movies.duration_minutes
	CreatedAt       time.Time // movies.created_at
}

// Duration returns the running time as a time.Duration.
func (m Movie) Duration() time.Duration {
	return time.Duration(m.DurationMinutes) * time.Minute
}
