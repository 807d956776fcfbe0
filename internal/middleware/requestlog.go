package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-ticket-booking/internal/logging"
)

// CorrelationHeader carries the request correlation id in and out.
const CorrelationHeader = "Correlation-ID"

// RequestLogger assigns every request a correlation id (the incoming
// header when present), stores a logrus entry carrying it in the request
// context and logs one line per request once the handler returns.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			correlationID := req.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = shortuuid.New()
			}
			ctx := logging.ContextWithCorrelationID(req.Context(), correlationID)
			c.SetRequest(req.WithContext(ctx))
			c.Response().Header().Set(CorrelationHeader, correlationID)

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler write the status before we read it
				c.Error(err)
			}

			status := c.Response().Status
			entry := logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{
				"method":   req.Method,
				"path":     c.Path(),
				"status":   status,
				"duration": time.Since(start).String(),
			})
			switch {
			case status >= 500:
				entry.WithError(err).Error("request failed")
			case status >= 400:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}
