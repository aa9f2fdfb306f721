package model

// Organization is an event organizer or company that hosts events.  An
// organization owns its events: it cannot be deleted (even softly)
// while events still reference it.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – unique organization name.
//  Website      – optional URL.
//  ContactEmail – optional contact address for inquiries.
type Organization struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Website      string `json:"website,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Entity
}

// OrgRole is a membership role inside an organization.  OWNER and
// MANAGER may manage events and ticket tiers; STAFF may only view.
type OrgRole string

const (
	OrgRoleOwner   OrgRole = "OWNER"
	OrgRoleManager OrgRole = "MANAGER"
	OrgRoleStaff   OrgRole = "STAFF"
)

// Membership links a user to an organization with a role.
type Membership struct {
	ID             uint64  `json:"id"`
	UserID         uint64  `json:"user_id"`
	OrganizationID uint64  `json:"organization_id"`
	Role           OrgRole `json:"role"`
	Entity
}
