package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/catalog"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// CatalogService is implemented by *catalog.Service.
type CatalogService interface {
	ScheduleShow(ctx context.Context, movieID, screenID uint64, startsAt time.Time, priceCents uint32) (*model.ShowDetail, error)
	RescheduleShow(ctx context.Context, showID uint64, startsAt time.Time, priceCents uint32) (*model.ShowDetail, error)
	DeleteShow(ctx context.Context, showID uint64) error
	GetShow(ctx context.Context, showID uint64) (*model.ShowDetail, error)
	ListShowsByScreen(ctx context.Context, screenID uint64) ([]model.ShowDetail, error)
	SearchShows(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResult, error)
}

// ShowHandler serves the public show listings and the owner scheduling
// endpoints.
type ShowHandler struct {
	svc CatalogService
}

func NewShowHandler(svc CatalogService) *ShowHandler {
	if svc == nil {
		panic("nil service passed to NewShowHandler")
	}
	return &ShowHandler{svc: svc}
}

type scheduleReq struct {
	MovieID    uint64    `json:"movie_id" validate:"required"`
	ScreenID   uint64    `json:"screen_id" validate:"required"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	PriceCents uint32    `json:"price_cents"`
}

type rescheduleReq struct {
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	PriceCents uint32    `json:"price_cents"`
}

// Search handles GET /v1/shows?title=&theater=&screen=&page=&page_size=.
func (h *ShowHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	res, err := h.svc.SearchShows(c.Request().Context(), catalog.SearchQuery{
		Title:    strings.TrimSpace(c.QueryParam("title")),
		Theater:  strings.TrimSpace(c.QueryParam("theater")),
		Screen:   strings.TrimSpace(c.QueryParam("screen")),
		Page:     page,
		PageSize: ps,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/shows/:id.
func (h *ShowHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	d, err := h.svc.GetShow(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ByScreen handles GET /v1/screens/:id/shows.
func (h *ShowHandler) ByScreen(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screen id"})
	}
	items, err := h.svc.ListShowsByScreen(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Schedule handles POST /v1/shows (OWNER).
func (h *ShowHandler) Schedule(c echo.Context) error {
	var req scheduleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	d, err := h.svc.ScheduleShow(c.Request().Context(), req.MovieID, req.ScreenID, req.StartsAt, req.PriceCents)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// Reschedule handles PUT and PATCH /v1/shows/:id (OWNER).
func (h *ShowHandler) Reschedule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req rescheduleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	d, err := h.svc.RescheduleShow(c.Request().Context(), id, req.StartsAt, req.PriceCents)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /v1/shows/:id (OWNER).
func (h *ShowHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	if err := h.svc.DeleteShow(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
