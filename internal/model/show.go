package model

import "time"

// Show represents a scheduled screening of a movie on a screen.
//
// Fields:
//  ID         – primary key identifier.
//  MovieID    – movie being screened.
//  ScreenID   – screen where the show takes place.
//  StartsAt   – start time in UTC.
//  PriceCents – price of a single seat in cents.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Show struct {
	ID         uint64    // shows.id
	MovieID    uint64    // shows.movie_id
	ScreenID   uint64    // shows.screen_id
	StartsAt   time.Time // shows.starts_at
	PriceCents uint32    // shows.price_cents
	CreatedAt  time.Time // shows.created_at
	UpdatedAt  time.Time // shows.updated_at
}

// ShowDetail is a show joined with its movie, screen and theater.  It is
// the shape returned by public browse endpoints and used for overlap
// checks, which need the movie duration.
type ShowDetail struct {
	ID              uint64    `json:"id"`
	MovieID         uint64    `json:"movie_id"`
	MovieTitle      string    `json:"movie_title"`
	DurationMinutes uint32    `json:"duration_minutes"`
	ScreenID        uint64    `json:"screen_id"`
	ScreenName      string    `json:"screen_name"`
	TheaterID       uint64    `json:"theater_id"`
	TheaterName     string    `json:"theater_name"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	PriceCents      uint32    `json:"price_cents"`
}
