package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/service"
)

// EventHandler exposes the event lifecycle: draft creation, updates,
// the publication gate, cancellation with its booking cascade and the
// public browse endpoints.
type EventHandler struct {
	Events *service.EventService
}

func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{Events: events}
}

type eventReq struct {
	OrganizationID uint64    `json:"organization_id"`
	VenueID        uint64    `json:"venue_id"`
	CategoryID     uint64    `json:"category_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Capacity       *uint32   `json:"capacity"`
}

func (r eventReq) input() service.EventInput {
	return service.EventInput{
		OrganizationID: r.OrganizationID,
		VenueID:        r.VenueID,
		CategoryID:     r.CategoryID,
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		StartsAt:       r.StartsAt,
		EndsAt:         r.EndsAt,
		Capacity:       r.Capacity,
	}
}

func (h *EventHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := req.input()
	if in.OrganizationID == 0 || in.VenueID == 0 || in.CategoryID == 0 || in.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "organization_id, venue_id, category_id and title required"})
	}
	e, err := h.Events.Create(c.Request().Context(), actor, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *EventHandler) Update(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := req.input()
	if in.VenueID == 0 || in.CategoryID == 0 || in.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue_id, category_id and title required"})
	}
	e, err := h.Events.Update(c.Request().Context(), actor, pathID(c, "id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Publish moves a draft event live once it carries at least one
// ticket tier.
func (h *EventHandler) Publish(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	e, err := h.Events.Publish(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Cancel terminates the event and cancels all of its active bookings.
func (h *EventHandler) Cancel(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Events.Cancel(c.Request().Context(), actor, pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *EventHandler) Get(c echo.Context) error {
	actor, _ := actorFrom(c)
	e, err := h.Events.Get(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ListPublished is the public browse endpoint.
func (h *EventHandler) ListPublished(c echo.Context) error {
	out, err := h.Events.ListPublished(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListForOrganization lists an organization's events, drafts included.
func (h *EventHandler) ListForOrganization(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Events.ListForOrganization(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// AvailableTickets lists the tiers of an event that still have
// inventory, cheapest first.
func (h *EventHandler) AvailableTickets(c echo.Context) error {
	actor, _ := actorFrom(c)
	out, err := h.Events.AvailableTiers(c.Request().Context(), actor, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
