package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/repository"
)

// CategoryHandler exposes CRUD for event categories (admin mutations,
// open reads).
type CategoryHandler struct {
	Categories *repository.CategoryRepo
}

func NewCategoryHandler(categories *repository.CategoryRepo) *CategoryHandler {
	return &CategoryHandler{Categories: categories}
}

type categoryReq struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	cat := model.EventCategory{Name: req.Name}
	if err := h.Categories.Create(c.Request().Context(), &cat); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *CategoryHandler) List(c echo.Context) error {
	out, err := h.Categories.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CategoryHandler) Delete(c echo.Context) error {
	if err := h.Categories.SoftDelete(c.Request().Context(), pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
