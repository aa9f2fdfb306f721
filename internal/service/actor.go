package service

import "github.com/btick/btick/internal/model"

// Actor is the authenticated caller of a service operation. The auth
// middleware builds it from the JWT claims and the caller's
// organization memberships; services only inspect it and never query
// membership themselves.
type Actor struct {
	UserID   uint64
	Role     model.Role
	OrgRoles map[uint64]model.OrgRole
}

// Staff reports whether the actor holds a platform-wide support or
// admin role. Staff may act on bookings they do not own.
func (a Actor) Staff() bool {
	return a.Role == model.RoleSupport || a.Role == model.RoleAdmin
}

// CanManage reports whether the actor may manage events and tiers of
// the given organization: platform admins always, organization owners
// and managers through their membership.
func (a Actor) CanManage(orgID uint64) bool {
	if a.Role == model.RoleAdmin {
		return true
	}
	switch a.OrgRoles[orgID] {
	case model.OrgRoleOwner, model.OrgRoleManager:
		return true
	}
	return false
}
