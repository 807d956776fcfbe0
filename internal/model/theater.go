package model

import "time"

// Theater is a venue containing one or more screens.
type Theater struct {
	ID        uint64    // theaters.id
	Name      string    // theaters.name
	CreatedAt time.Time // theaters.created_at
}

// Screen is an auditorium inside a theater.  Seats belong to exactly one
// screen and shows are scheduled on a screen.
type Screen struct {
	ID        uint64    // screens.id
	TheaterID uint64    // screens.theater_id
	Name      string    // screens.name
	CreatedAt time.Time // screens.created_at
}
