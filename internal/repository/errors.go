// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// services and handlers to distinguish between failure scenarios. For
// example, ErrConflict signals that a delete cannot proceed because
// dependent records still exist (deleting a venue that still hosts
// events), while ErrStaleWrite reports a lost-update conflict detected
// through the version column.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an organization that still hosts events. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique constraint
// (organization name, event title, tier type per event, user email).
var ErrDuplicate = errors.New("duplicate")

// ErrStaleWrite is returned when a versioned update finds that the
// stored version no longer matches the one the caller read. The caller
// must re-read and retry; the write is never applied silently.
var ErrStaleWrite = errors.New("stale write")

// ErrLockTimeout is returned when the database gave up waiting for a
// row lock or chose this transaction as a deadlock victim. The
// operation did not happen and is safe to retry with backoff.
var ErrLockTimeout = errors.New("lock timeout")

// Not-found sentinels, one per aggregate. Repositories translate
// sql.ErrNoRows into these so callers never import database/sql just
// to branch on a missing row.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrVenueNotFound        = errors.New("venue not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrTierNotFound         = errors.New("ticket tier not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrMembershipNotFound   = errors.New("membership not found")
)
