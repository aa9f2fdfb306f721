package model

import "time"

// Role is the platform-wide role carried in the JWT "role" claim.
// Organization-level permissions are modelled separately through
// Membership.
type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleOrganizer Role = "ORGANIZER"
	RoleSupport   Role = "SUPPORT"
	RoleAdmin     Role = "ADMIN"
)

// User is an account that can authenticate and own bookings.  Only the
// fields the ticketing core needs are modelled; PasswordHash never
// leaves the repository layer.
type User struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	Entity
}

// RefreshToken models a row in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the token value.
//  ExpiresAt – expiration timestamp.
//  RevokedAt – when the token was revoked (nil if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
