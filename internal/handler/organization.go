package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/btick/btick/internal/model"
	"github.com/btick/btick/internal/repository"
)

// OrganizationHandler exposes CRUD for organizations and membership
// management. Creation and deletion are admin routes; membership adds
// are open to admins and the organization's owner.
type OrganizationHandler struct {
	Orgs    *repository.OrganizationRepo
	Members *repository.MembershipRepo
}

func NewOrganizationHandler(orgs *repository.OrganizationRepo, members *repository.MembershipRepo) *OrganizationHandler {
	return &OrganizationHandler{Orgs: orgs, Members: members}
}

type organizationReq struct {
	Name         string `json:"name"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
}

func (h *OrganizationHandler) Create(c echo.Context) error {
	var req organizationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	o := model.Organization{Name: req.Name, Website: req.Website, ContactEmail: req.ContactEmail}
	if err := h.Orgs.Create(c.Request().Context(), &o); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *OrganizationHandler) Get(c echo.Context) error {
	o, err := h.Orgs.GetByID(c.Request().Context(), pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrganizationHandler) List(c echo.Context) error {
	out, err := h.Orgs.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrganizationHandler) Update(c echo.Context) error {
	var req organizationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx := c.Request().Context()
	o, err := h.Orgs.GetByID(ctx, pathID(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	actor, ok := actorFrom(c)
	if !ok || !actor.CanManage(o.ID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		o.Name = name
	}
	o.Website = req.Website
	o.ContactEmail = req.ContactEmail
	if err := h.Orgs.Update(ctx, &o); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrganizationHandler) Delete(c echo.Context) error {
	if err := h.Orgs.SoftDelete(c.Request().Context(), pathID(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type membershipReq struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"` // OWNER | MANAGER | STAFF
}

// AddMember attaches a user to the organization. Admins may add
// anyone; organization owners may add to their own organization.
func (h *OrganizationHandler) AddMember(c echo.Context) error {
	var req membershipReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	role := model.OrgRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	switch role {
	case model.OrgRoleOwner, model.OrgRoleManager, model.OrgRoleStaff:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	orgID := pathID(c, "id")
	actor, ok := actorFrom(c)
	if !ok || (actor.Role != model.RoleAdmin && actor.OrgRoles[orgID] != model.OrgRoleOwner) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	ctx := c.Request().Context()
	if _, err := h.Orgs.GetByID(ctx, orgID); err != nil {
		return writeError(c, err)
	}
	m := model.Membership{UserID: req.UserID, OrganizationID: orgID, Role: role}
	if err := h.Members.Add(ctx, &m); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Members lists the organization's memberships for its managers and
// platform staff.
func (h *OrganizationHandler) ListMembers(c echo.Context) error {
	orgID := pathID(c, "id")
	actor, ok := actorFrom(c)
	if !ok || (!actor.CanManage(orgID) && !actor.Staff()) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	out, err := h.Members.ListByOrganization(c.Request().Context(), orgID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// RemoveMember detaches a user. Same permission rule as AddMember.
func (h *OrganizationHandler) RemoveMember(c echo.Context) error {
	orgID := pathID(c, "id")
	userID := pathID(c, "userID")
	actor, ok := actorFrom(c)
	if !ok || (actor.Role != model.RoleAdmin && actor.OrgRoles[orgID] != model.OrgRoleOwner) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.Members.Remove(c.Request().Context(), userID, orgID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
