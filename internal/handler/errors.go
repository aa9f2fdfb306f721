// Package handler contains the HTTP layer: thin Echo handlers that
// bind and validate request bodies, call the services and translate
// service errors into status codes.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/repository"
	"github.com/btick/btick/internal/service"
)

// writeError maps a service or repository error onto an HTTP response.
// Validation problems map to 400, missing rows to 404, permission
// failures to 403, state and inventory conflicts to 409 and lock
// timeouts to 503 with a Retry-After hint.
func writeError(c echo.Context, err error) error {
	var insufficient *service.InsufficientInventoryError
	if errors.As(err, &insufficient) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     insufficient.Error(),
			"available": insufficient.Available,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidQuota),
		errors.Is(err, service.ErrInvalidTicketType),
		errors.Is(err, service.ErrInvalidSchedule):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})

	case errors.Is(err, repository.ErrOrganizationNotFound),
		errors.Is(err, repository.ErrVenueNotFound),
		errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrTierNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrMembershipNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})

	case errors.Is(err, service.ErrEventNotBookable),
		errors.Is(err, service.ErrEventAlreadyStarted),
		errors.Is(err, service.ErrEventCancelled),
		errors.Is(err, service.ErrNotDraft),
		errors.Is(err, service.ErrNoTicketTiers),
		errors.Is(err, service.ErrNotPending),
		errors.Is(err, service.ErrBookingExpired),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrDuplicateTicketType),
		errors.Is(err, service.ErrQuotaBelowSold),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrStaleWrite):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})

	case errors.Is(err, repository.ErrLockTimeout):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "busy, retry shortly"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a numeric path parameter, reporting 0 on garbage so
// lookups fall through to not-found handling.
func pathID(c echo.Context, name string) uint64 {
	return parseUint(c.Param(name))
}
