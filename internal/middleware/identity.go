package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a string for
// rate-limit bucket keys, "anon" for unauthenticated requests.
func currentUserID(c echo.Context) string {
	if actor, ok := ActorFromContext(c); ok && actor.UserID > 0 {
		return strconv.FormatUint(actor.UserID, 10)
	}
	return "anon"
}
