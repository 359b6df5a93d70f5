/**
 * @description
 * The settlement read model: one row per settlement run accumulating the
 * fees settled for an estate on a given date.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// SettlementState is the materialized view of one settlement run.
type SettlementState struct {
	SettlementID   uuid.UUID `json:"settlement_id"`
	EstateID       uuid.UUID `json:"estate_id"`
	SettlementDate time.Time `json:"settlement_date"`

	FeeCount     int          `json:"fee_count"`
	SettledValue money.Amount `json:"settled_value"`

	ProcessingStartedAt time.Time `json:"processing_started_at"`
	CompletedAt         time.Time `json:"completed_at"`
	Completed           bool      `json:"completed"`

	ChangesApplied bool  `json:"changes_applied"`
	Version        int64 `json:"version"`
}

// NewSettlementState returns the zero state for a settlement partition.
func NewSettlementState(settlementID uuid.UUID) SettlementState {
	return SettlementState{SettlementID: settlementID}
}

// MarkChanged returns a copy flagged as mutated by at least one event.
func (s SettlementState) MarkChanged() SettlementState {
	s.ChangesApplied = true
	return s
}

// Equal compares read-model content, excluding store bookkeeping fields.
func (s SettlementState) Equal(o SettlementState) bool {
	return s.SettlementID == o.SettlementID &&
		s.EstateID == o.EstateID &&
		s.SettlementDate.Equal(o.SettlementDate) &&
		s.FeeCount == o.FeeCount &&
		s.SettledValue.Equal(o.SettledValue) &&
		s.ProcessingStartedAt.Equal(o.ProcessingStartedAt) &&
		s.CompletedAt.Equal(o.CompletedAt) &&
		s.Completed == o.Completed
}
