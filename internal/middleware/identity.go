package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// HolderID returns the authenticated subject, or "" when the request
// carries no verified token.
func HolderID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}

// Role returns the role claim of the authenticated subject.
func Role(c echo.Context) string {
	role, _ := c.Get(roleKey).(string)
	return role
}

// rateKeyUser identifies the caller for rate limiting.  Unauthenticated
// requests share the "anon" bucket of their IP.
func rateKeyUser(c echo.Context) string {
	if id := HolderID(c); id != "" {
		return id
	}
	return "anon"
}
