package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	// BookingPending is reserved for a future payment capture step.
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking records a user's confirmed claim on one or more seats for a
// show.  It is created together with its BookingSeat rows and never
// persisted partially.
type Booking struct {
	ID               uint64        // bookings.id
	ShowID           uint64        // bookings.show_id
	UserID           uint64        // bookings.user_id
	Holder           string        // bookings.holder
	Status           BookingStatus // bookings.status
	TotalAmountCents uint64        // bookings.total_amount_cents
	CreatedAt        time.Time     // bookings.created_at
}

// BookingSeat links a booking to a seat of its show.
type BookingSeat struct {
	BookingID uint64 // booking_seats.booking_id
	ShowID    uint64 // booking_seats.show_id
	SeatID    uint64 // booking_seats.seat_id
}

// BookedSeat is a seat projection inside a BookingSummary.
type BookedSeat struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row"`
	SeatNumber uint32 `json:"number"`
}

// BookingSummary is the read model returned by booking history lookups.
type BookingSummary struct {
	ID               uint64        `json:"id"`
	ShowID           uint64        `json:"show_id"`
	Status           BookingStatus `json:"status"`
	TotalAmountCents uint64        `json:"total_amount_cents"`
	CreatedAt        time.Time     `json:"created_at"`
	MovieTitle       string        `json:"movie_title"`
	StartsAt         time.Time     `json:"starts_at"`
	ScreenID         uint64        `json:"screen_id"`
	ScreenName       string        `json:"screen_name"`
	TheaterName      string        `json:"theater_name"`
	Seats            []BookedSeat  `json:"seats"`
}
