package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// RegisterCustomer registers the booking endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  limit guards the two
// endpoints that take row locks in the database.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer),
	)
	g.POST("/shows/:id/locks", h.Lock, limit)
	g.DELETE("/shows/:id/locks", h.Release)
	g.POST("/shows/:id/confirm", h.Confirm, limit)
	g.GET("/my-bookings", h.MyBookings)
	g.GET("/bookings/:id", h.Get)
	g.DELETE("/bookings/:id", h.Cancel)
}
