// Package types provides value types shared across allowance packages.
package types

import "time"

// Entity carries the bookkeeping timestamps of a persisted record.
// Embed it in domain types; the engine stamps it from its own clock.
type Entity struct {
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewEntity creates an Entity stamped with t (normalised to UTC).
func NewEntity(t time.Time) Entity {
	t = t.UTC()
	return Entity{
		CreatedAt: t,
		UpdatedAt: t,
	}
}

// Touch moves UpdatedAt to t. Earlier times are ignored.
func (e *Entity) Touch(t time.Time) {
	t = t.UTC()
	if t.After(e.UpdatedAt) {
		e.UpdatedAt = t
	}
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
