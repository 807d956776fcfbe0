// Package queue carries booking events over RabbitMQ.  Events go to a
// durable topic exchange keyed by event type; the audit consumer binds a
// queue to both keys and appends each event to a log file.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// Routing keys.
const (
	KeyBookingConfirmed = "booking.confirmed"
	KeyBookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a booking transaction commits.  It holds
// enough for consumers to log or notify without reading the database.
type BookingEvent struct {
	ID               string              `json:"id"`
	Type             string              `json:"type"`
	CorrelationID    string              `json:"correlation_id,omitempty"`
	BookingID        uint64              `json:"booking_id"`
	UserID           uint64              `json:"user_id"`
	ShowID           uint64              `json:"show_id"`
	Holder           string              `json:"holder"`
	Status           model.BookingStatus `json:"status"`
	SeatIDs          []uint64            `json:"seat_ids"`
	TotalAmountCents uint64              `json:"total_amount_cents"`
	OccurredAt       time.Time           `json:"occurred_at"`
}

// NewBookingEvent builds an event of type key for b.
func NewBookingEvent(key string, b model.Booking, seatIDs []uint64, correlationID string, at time.Time) BookingEvent {
	if seatIDs == nil {
		seatIDs = []uint64{}
	}
	return BookingEvent{
		ID:               uuid.NewString(),
		Type:             key,
		CorrelationID:    correlationID,
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		Holder:           b.Holder,
		Status:           b.Status,
		SeatIDs:          seatIDs,
		TotalAmountCents: b.TotalAmountCents,
		OccurredAt:       at.UTC(),
	}
}
