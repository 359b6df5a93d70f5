/**
 * @description
 * The voucher read model: one row per voucher tracking its lifecycle from
 * generation through issue to full redemption.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// VoucherState is the materialized view of one voucher.
type VoucherState struct {
	VoucherID     uuid.UUID    `json:"voucher_id"`
	EstateID      uuid.UUID    `json:"estate_id"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	OperatorID    string       `json:"operator_id"`
	Value         money.Amount `json:"value"`
	Barcode       string       `json:"barcode"`

	RecipientEmail string `json:"recipient_email"`
	RecipientPhone string `json:"recipient_phone"`

	Generated bool `json:"generated"`
	Issued    bool `json:"issued"`
	Redeemed  bool `json:"redeemed"`

	GeneratedAt time.Time `json:"generated_at"`
	IssuedAt    time.Time `json:"issued_at"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	ChangesApplied bool  `json:"changes_applied"`
	Version        int64 `json:"version"`
}

// NewVoucherState returns the zero state for a voucher partition.
func NewVoucherState(voucherID uuid.UUID) VoucherState {
	return VoucherState{VoucherID: voucherID}
}

// MarkChanged returns a copy flagged as mutated by at least one event.
func (s VoucherState) MarkChanged() VoucherState {
	s.ChangesApplied = true
	return s
}

// Equal compares read-model content, excluding store bookkeeping fields.
func (s VoucherState) Equal(o VoucherState) bool {
	return s.VoucherID == o.VoucherID &&
		s.EstateID == o.EstateID &&
		s.TransactionID == o.TransactionID &&
		s.OperatorID == o.OperatorID &&
		s.Value.Equal(o.Value) &&
		s.Barcode == o.Barcode &&
		s.RecipientEmail == o.RecipientEmail &&
		s.RecipientPhone == o.RecipientPhone &&
		s.Generated == o.Generated &&
		s.Issued == o.Issued &&
		s.Redeemed == o.Redeemed &&
		s.GeneratedAt.Equal(o.GeneratedAt) &&
		s.IssuedAt.Equal(o.IssuedAt) &&
		s.RedeemedAt.Equal(o.RedeemedAt) &&
		s.ExpiresAt.Equal(o.ExpiresAt)
}
