// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/cinema-ticket-booking/internal/handler"
	"github.com/iliyamo/cinema-ticket-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes.  Operations
// that create a session live under /v1/auth; /v1/me and logout require a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers read-only endpoints that guests may call:
// show search and detail, screen timetables and seat maps.
func RegisterPublic(e *echo.Echo, s *handler.ShowHandler, b *handler.BookingHandler) {
	g := e.Group("/v1")
	g.GET("/shows", s.Search)
	g.GET("/shows/:id", s.Get)
	g.GET("/screens/:id/shows", s.ByScreen)
	g.GET("/shows/:id/seats", b.Seats)
}
