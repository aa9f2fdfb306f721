package handler

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/service"
)

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return n
}

// actorFrom reads the actor the auth middleware stored in the context.
// A missing actor means the route was registered without JWTAuth.
func actorFrom(c echo.Context) (service.Actor, bool) {
	a, ok := c.Get("actor").(service.Actor)
	return a, ok
}
