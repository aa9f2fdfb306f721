package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/service"
)

// BookingHandler exposes the booking lifecycle: reserve, confirm,
// cancel, administrative refund and the read endpoints.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: bookings}
}

type bookingCreateReq struct {
	TierID   uint64 `json:"tier_id"`
	Quantity uint32 `json:"quantity"`
}

// Create reserves tickets and returns the PENDING booking with its
// confirmation deadline.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req bookingCreateReq
	if err := c.Bind(&req); err != nil || req.TierID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tier_id required"})
	}
	b, err := h.Bookings.Create(c.Request().Context(), actor, req.TierID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) Confirm(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.Bookings.Confirm(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Bookings.Cancel(c.Request().Context(), actor, pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Refund is the staff-only path out of CONFIRMED, usable even after
// the event has started.
func (h *BookingHandler) Refund(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Bookings.Refund(c.Request().Context(), actor, pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BookingHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	d, err := h.Bookings.Get(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ListMine returns the caller's bookings, newest first.
func (h *BookingHandler) ListMine(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Bookings.ListForUser(c.Request().Context(), actor, actor.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListForUser lets staff inspect another user's bookings.
func (h *BookingHandler) ListForUser(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Bookings.ListForUser(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
