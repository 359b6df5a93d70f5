/**
 * @description
 * The settlement reducer. Fee accumulation is NOT naturally idempotent (a
 * second application would double-count), so duplicate suppression for this
 * projection rests on the store's durable per-event applied marker.
 */

package projection

import (
	"github.com/transactionprocessing/projection-service/internal/domain"
)

// SettlementReducer folds settlement-run events into SettlementState.
type SettlementReducer struct{}

// NewSettlementReducer returns the settlement reducer.
func NewSettlementReducer() *SettlementReducer { return &SettlementReducer{} }

func (r *SettlementReducer) Relevant(ev domain.Event) bool {
	switch ev.Body.(type) {
	case domain.SettlementCreated,
		domain.MerchantFeeAddedToSettlement,
		domain.SettlementProcessingStarted,
		domain.SettlementCompleted:
		return true
	default:
		return false
	}
}

func (r *SettlementReducer) Apply(state domain.SettlementState, ev domain.Event) domain.SettlementState {
	switch body := ev.Body.(type) {
	case domain.SettlementCreated:
		next := state
		next.SettlementID = body.SettlementID
		next.EstateID = body.EstateID
		next.SettlementDate = body.SettlementDate
		return next

	case domain.MerchantFeeAddedToSettlement:
		next := state
		next.FeeCount++
		next.SettledValue = next.SettledValue.Add(body.FeeValue)
		return next

	case domain.SettlementProcessingStarted:
		next := state
		next.ProcessingStartedAt = laterOf(next.ProcessingStartedAt, body.StartedAt)
		return next

	case domain.SettlementCompleted:
		next := state
		next.Completed = true
		next.CompletedAt = laterOf(next.CompletedAt, body.CompletedAt)
		return next

	default:
		return state
	}
}
