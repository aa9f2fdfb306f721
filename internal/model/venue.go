package model

// Venue is a physical location where events are held.  Events reference
// venues with protect-on-delete semantics: a venue with events cannot
// be removed.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – unique venue name.
//  Address  – optional street address.
//  Capacity – maximum number of attendees the venue can hold.
type Venue struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Capacity uint32 `json:"capacity"`
	Entity
}
