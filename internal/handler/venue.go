package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/repository"
)

// VenueHandler exposes CRUD for venues. Mutations are admin routes;
// reads are open to any authenticated user.
type VenueHandler struct {
	Venues *repository.VenueRepo
}

func NewVenueHandler(venues *repository.VenueRepo) *VenueHandler {
	return &VenueHandler{Venues: venues}
}

type venueReq struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Capacity uint32 `json:"capacity"`
}

func (h *VenueHandler) Create(c echo.Context) error {
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and capacity required"})
	}
	v := model.Venue{Name: req.Name, Address: req.Address, Capacity: req.Capacity}
	if err := h.Venues.Create(c.Request().Context(), &v); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *VenueHandler) Get(c echo.Context) error {
	v, err := h.Venues.GetByID(c.Request().Context(), pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *VenueHandler) List(c echo.Context) error {
	out, err := h.Venues.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *VenueHandler) Update(c echo.Context) error {
	var req venueReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	v, err := h.Venues.GetByID(ctx, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		v.Name = name
	}
	v.Address = req.Address
	if req.Capacity > 0 {
		v.Capacity = req.Capacity
	}
	if err := h.Venues.Update(ctx, &v); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *VenueHandler) Delete(c echo.Context) error {
	if err := h.Venues.SoftDelete(c.Request().Context(), pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
