package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-booking/internal/booking"
	"github.com/iliyamo/cinema-ticket-booking/internal/catalog"
	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
)

// Validator adapts go-playground/validator to echo.Validator so handlers
// can call c.Validate on request DTOs.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator with the default rules.
func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// bindValid binds the request body into dst and validates it.  On failure
// it writes the 400 response itself and returns ok=false.
func bindValid(c echo.Context, dst interface{}) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return false, c.JSON(http.StatusBadRequest, echo.Map{
				"error": "invalid request body",
				"field": verrs[0].Field(),
				"rule":  verrs[0].Tag(),
			})
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return true, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// respondError writes the JSON error for err.  Conflicts carry the reason
// and the seats involved so clients can retry with a smaller selection.
func respondError(c echo.Context, err error) error {
	var (
		ce *booking.ConflictError
		ie *booking.InvalidInputError
	)
	switch {
	case errors.As(err, &ce):
		body := echo.Map{"error": "conflict", "reason": ce.Reason}
		if len(ce.SeatIDs) > 0 {
			body["seat_ids"] = ce.SeatIDs
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &ie):
		body := echo.Map{"error": ie.Message}
		if len(ie.SeatIDs) > 0 {
			body["seat_ids"] = ie.SeatIDs
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidInput), errors.Is(err, catalog.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, booking.ErrConflict), errors.Is(err, catalog.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "reason": err.Error()})
	}
	logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
