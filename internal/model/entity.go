package model

import "time"

// Entity holds the bookkeeping columns shared by every table in the
// system.  It is embedded by value in each model instead of being
// inherited: the repository layer applies the shared read/write policy
// (hide soft-deleted rows by default, refresh updated_at, enforce
// version match) uniformly.
//
// Fields:
//  CreatedAt – set once on insert, never changed afterwards.
//  UpdatedAt – refreshed by the database on every write.
//  IsActive  – enable/disable flag; cleared together with DeletedAt.
//  DeletedAt – soft-delete marker; nil means the row is alive.
//  Version   – optimistic-lock counter; state-changing updates must
//              supply the version they read and are rejected with a
//              stale-write error when the stored value has moved on.
type Entity struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	IsActive  bool       `json:"is_active"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Version   uint64     `json:"version"`
}

// Deleted reports whether the row has been soft-deleted.
func (e Entity) Deleted() bool { return e.DeletedAt != nil }
