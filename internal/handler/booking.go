package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// BookingService is the seat protocol as seen by HTTP.  *booking.Service
// implements it.
type BookingService interface {
	AcquireLocks(ctx context.Context, showID uint64, seatIDs []uint64, holder string) (*booking.LockResult, error)
	ReleaseLocks(ctx context.Context, showID uint64, holder string) (int64, error)
	Confirm(ctx context.Context, showID uint64, seatIDs []uint64, userID uint64, holder string) (*booking.Confirmation, error)
	CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
	GetSeatAvailability(ctx context.Context, showID uint64) ([]model.SeatAvailability, error)
	ListBookingsForUser(ctx context.Context, userID uint64) ([]model.BookingSummary, error)
	GetBooking(ctx context.Context, bookingID, userID uint64) (*model.BookingSummary, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// BookingHandler serves seat maps, locks and bookings.  Routes that change
// state sit behind JWTAuth; the holder of a lock is the caller's e-mail
// from the token.
type BookingHandler struct {
	svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

type seatsReq struct {
	SeatIDs []uint64 `json:"seat_ids" validate:"required,min=1,max=50,dive,gt=0"`
}

type lockResp struct {
	ShowID    uint64    `json:"show_id"`
	SeatIDs   []uint64  `json:"seat_ids"`
	ExpiresAt time.Time `json:"expires_at"`
}

type bookingResp struct {
	ID               uint64              `json:"id"`
	ShowID           uint64              `json:"show_id"`
	Status           model.BookingStatus `json:"status"`
	SeatIDs          []uint64            `json:"seat_ids,omitempty"`
	TotalAmountCents uint64              `json:"total_amount_cents"`
	CreatedAt        time.Time           `json:"created_at"`
}

// Seats handles GET /v1/shows/:id/seats.
func (h *BookingHandler) Seats(c echo.Context) error {
	showID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	seats, err := h.svc.GetSeatAvailability(c.Request().Context(), showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "seats": seats})
}

// Lock handles POST /v1/shows/:id/locks.  Calling it again for seats the
// caller already holds renews them.
func (h *BookingHandler) Lock(c echo.Context) error {
	showID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req seatsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	res, err := h.svc.AcquireLocks(c.Request().Context(), showID, req.SeatIDs, middleware.Email(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, lockResp{ShowID: res.ShowID, SeatIDs: res.SeatIDs, ExpiresAt: res.ExpiresAt})
}

// Release handles DELETE /v1/shows/:id/locks.
func (h *BookingHandler) Release(c echo.Context) error {
	showID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	n, err := h.svc.ReleaseLocks(c.Request().Context(), showID, middleware.Email(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// Confirm handles POST /v1/shows/:id/confirm.  Every seat must be locked
// by the caller; a failed confirmation leaves the locks in place.
func (h *BookingHandler) Confirm(c echo.Context) error {
	showID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req seatsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	conf, err := h.svc.Confirm(c.Request().Context(), showID, req.SeatIDs, middleware.UserID(c), middleware.Email(c))
	if err != nil {
		return respondError(c, err)
	}
	b := conf.Booking
	return c.JSON(http.StatusCreated, bookingResp{
		ID:               b.ID,
		ShowID:           b.ShowID,
		Status:           b.Status,
		SeatIDs:          conf.SeatIDs,
		TotalAmountCents: b.TotalAmountCents,
		CreatedAt:        b.CreatedAt,
	})
}

// MyBookings handles GET /v1/my-bookings.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	items, err := h.svc.ListBookingsForUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.svc.CancelBooking(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{
		ID:               b.ID,
		ShowID:           b.ShowID,
		Status:           b.Status,
		TotalAmountCents: b.TotalAmountCents,
		CreatedAt:        b.CreatedAt,
	})
}

// Sweep handles POST /v1/admin/locks/sweep.
func (h *BookingHandler) Sweep(c echo.Context) error {
	n, err := h.svc.SweepExpired(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": n})
}
