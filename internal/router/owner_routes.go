package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// RegisterOwner registers OWNER-scoped endpoints under /v1: show
// scheduling and the manual lock sweep.
func RegisterOwner(e *echo.Echo, s *handler.ShowHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner),
	)

	// ---- Shows ----
	g.POST("/shows", s.Schedule)
	g.PUT("/shows/:id", s.Reschedule)
	g.PATCH("/shows/:id", s.Reschedule)
	g.DELETE("/shows/:id", s.Delete)

	// ---- Locks ----
	g.POST("/admin/locks/sweep", b.Sweep)
}
