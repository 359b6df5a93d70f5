/**
 * @description
 * The estate read model: one row per top-level tenant. Thin by design; the
 * estate aggregate's interesting state lives in per-estate reporting schemas
 * provisioned when the estate is created.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// EstateState is the materialized view of one estate.
type EstateState struct {
	EstateID   uuid.UUID `json:"estate_id"`
	EstateName string    `json:"estate_name"`
	CreatedAt  time.Time `json:"created_at"`

	ChangesApplied bool  `json:"changes_applied"`
	Version        int64 `json:"version"`
}

// NewEstateState returns the zero state for an estate partition.
func NewEstateState(estateID uuid.UUID) EstateState {
	return EstateState{EstateID: estateID}
}

// MarkChanged returns a copy flagged as mutated by at least one event.
func (s EstateState) MarkChanged() EstateState {
	s.ChangesApplied = true
	return s
}

// Equal compares read-model content, excluding store bookkeeping fields.
func (s EstateState) Equal(o EstateState) bool {
	return s.EstateID == o.EstateID &&
		s.EstateName == o.EstateName &&
		s.CreatedAt.Equal(o.CreatedAt)
}
