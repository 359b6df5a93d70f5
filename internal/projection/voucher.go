/**
 * @description
 * The voucher reducer. Lifecycle flags are idempotent by construction:
 * re-applying an event sets the same fields to the same values, which the
 * orchestrator detects as an unchanged reduction.
 */

package projection

import (
	"github.com/transactionprocessing/projection-service/internal/domain"
)

// VoucherReducer folds voucher lifecycle events into VoucherState.
type VoucherReducer struct{}

// NewVoucherReducer returns the voucher reducer.
func NewVoucherReducer() *VoucherReducer { return &VoucherReducer{} }

func (r *VoucherReducer) Relevant(ev domain.Event) bool {
	switch ev.Body.(type) {
	case domain.VoucherGenerated, domain.VoucherIssued, domain.VoucherFullyRedeemed:
		return true
	default:
		return false
	}
}

func (r *VoucherReducer) Apply(state domain.VoucherState, ev domain.Event) domain.VoucherState {
	switch body := ev.Body.(type) {
	case domain.VoucherGenerated:
		next := state
		next.VoucherID = body.VoucherID
		next.EstateID = body.EstateID
		next.TransactionID = body.TransactionID
		next.OperatorID = body.OperatorID
		next.Value = body.Value
		next.ExpiresAt = body.ExpiresAt
		next.Generated = true
		next.GeneratedAt = laterOf(next.GeneratedAt, ev.OccurredAt)
		return next

	case domain.VoucherIssued:
		next := state
		next.RecipientEmail = body.RecipientEmail
		next.RecipientPhone = body.RecipientPhone
		next.Barcode = body.Barcode
		next.Issued = true
		next.IssuedAt = laterOf(next.IssuedAt, body.IssuedAt)
		return next

	case domain.VoucherFullyRedeemed:
		next := state
		next.Redeemed = true
		next.RedeemedAt = laterOf(next.RedeemedAt, body.RedeemedAt)
		return next

	default:
		return state
	}
}
