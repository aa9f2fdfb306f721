package model

// EventCategory classifies events (concert, conference, workshop, ...).
// Referenced by events with protect-on-delete semantics.
type EventCategory struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Entity
}
