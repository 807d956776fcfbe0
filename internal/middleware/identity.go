package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id, or 0 when the request
// carries no valid token.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(ctxUserID).(uint64)
	return id
}

// Email returns the authenticated user's e-mail address, which is also
// the holder identity of the seat locks they take.
func Email(c echo.Context) string {
	e, _ := c.Get(ctxEmail).(string)
	return e
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}
