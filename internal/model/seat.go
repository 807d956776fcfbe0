package model

// Seat describes a physical seat on a screen.  Seats are uniquely
// identified by their screen, row label and seat number.  Only the
// Disabled flag changes after creation.
type Seat struct {
	ID         uint64 // seats.id
	ScreenID   uint64 // seats.screen_id
	RowLabel   string // seats.row_label
	SeatNumber uint32 // seats.seat_number
	Disabled   bool   // seats.disabled
}

// SeatAvailability is the per-seat projection returned by the seat map
// of a show.  IsBooked and IsLocked never both hold in steady state.
type SeatAvailability struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row"`
	SeatNumber uint32 `json:"number"`
	Disabled   bool   `json:"disabled"`
	IsBooked   bool   `json:"is_booked"`
	IsLocked   bool   `json:"is_locked"`
}
