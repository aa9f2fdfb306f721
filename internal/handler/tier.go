package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/service"
)

// TierHandler exposes ticket tier management for event organizers.
type TierHandler struct {
	Tiers *service.TierService
}

func NewTierHandler(tiers *service.TierService) *TierHandler {
	return &TierHandler{Tiers: tiers}
}

type tierCreateReq struct {
	TicketType string `json:"ticket_type"`
	Price      string `json:"price"`
	Quota      uint32 `json:"quota"`
}

type tierUpdateReq struct {
	Price string `json:"price"`
	Quota uint32 `json:"quota"`
}

func parsePrice(s string) (decimal.Decimal, bool) {
	p, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return p, true
}

func (h *TierHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req tierCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid price"})
	}
	in := service.TierInput{
		TicketType: model.TicketType(strings.ToUpper(strings.TrimSpace(req.TicketType))),
		Price:      price,
		Quota:      req.Quota,
	}
	t, err := h.Tiers.Create(c.Request().Context(), actor, pathID(c, "id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TierHandler) Update(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req tierUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid price"})
	}
	t, err := h.Tiers.Update(c.Request().Context(), actor, pathID(c, "tierID"), price, req.Quota)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListForEvent returns every tier of an event, sold-out ones included,
// so organizers can see the full picture.
func (h *TierHandler) ListForEvent(c echo.Context) error {
	out, err := h.Tiers.ListForEvent(c.Request().Context(), pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TierHandler) Delete(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Tiers.Delete(c.Request().Context(), actor, pathID(c, "tierID")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
