/**
 * @description
 * The merchant balance read model. One row per merchant, derived purely by
 * replaying balance-affecting events for that merchant. The struct is a plain
 * value type: reducers copy it and patch fields, never mutate in place, so
 * change detection stays a cheap value comparison.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// MerchantBalanceState is the materialized balance view for one merchant.
// Version is the optimistic-concurrency token managed by the state store;
// reducers never touch it.
type MerchantBalanceState struct {
	MerchantID   uuid.UUID `json:"merchant_id"`
	EstateID     uuid.UUID `json:"estate_id"`
	MerchantName string    `json:"merchant_name"`

	Balance          money.Amount `json:"balance"`
	AvailableBalance money.Amount `json:"available_balance"`

	DepositCount   int          `json:"deposit_count"`
	TotalDeposited money.Amount `json:"total_deposited"`

	WithdrawalCount int          `json:"withdrawal_count"`
	TotalWithdrawn  money.Amount `json:"total_withdrawn"`

	SaleCount       int          `json:"sale_count"`
	AuthorisedSales money.Amount `json:"authorised_sales"`
	DeclinedSales   money.Amount `json:"declined_sales"`

	FeeCount    int          `json:"fee_count"`
	ValueOfFees money.Amount `json:"value_of_fees"`

	LastDeposit    time.Time `json:"last_deposit"`
	LastWithdrawal time.Time `json:"last_withdrawal"`
	LastSale       time.Time `json:"last_sale"`
	LastFee        time.Time `json:"last_fee"`

	ChangesApplied bool  `json:"changes_applied"`
	Version        int64 `json:"version"`
}

// NewMerchantBalanceState returns the zero-valued state a fresh partition
// starts from.
func NewMerchantBalanceState(merchantID uuid.UUID) MerchantBalanceState {
	return MerchantBalanceState{MerchantID: merchantID}
}

// MarkChanged returns a copy flagged as mutated by at least one event.
func (s MerchantBalanceState) MarkChanged() MerchantBalanceState {
	s.ChangesApplied = true
	return s
}

// Equal compares the read-model content of two states. Version and
// ChangesApplied are bookkeeping, not content, and are excluded so that a
// no-op reduction is detected as unchanged.
func (s MerchantBalanceState) Equal(o MerchantBalanceState) bool {
	return s.MerchantID == o.MerchantID &&
		s.EstateID == o.EstateID &&
		s.MerchantName == o.MerchantName &&
		s.Balance.Equal(o.Balance) &&
		s.AvailableBalance.Equal(o.AvailableBalance) &&
		s.DepositCount == o.DepositCount &&
		s.TotalDeposited.Equal(o.TotalDeposited) &&
		s.WithdrawalCount == o.WithdrawalCount &&
		s.TotalWithdrawn.Equal(o.TotalWithdrawn) &&
		s.SaleCount == o.SaleCount &&
		s.AuthorisedSales.Equal(o.AuthorisedSales) &&
		s.DeclinedSales.Equal(o.DeclinedSales) &&
		s.FeeCount == o.FeeCount &&
		s.ValueOfFees.Equal(o.ValueOfFees) &&
		s.LastDeposit.Equal(o.LastDeposit) &&
		s.LastWithdrawal.Equal(o.LastWithdrawal) &&
		s.LastSale.Equal(o.LastSale) &&
		s.LastFee.Equal(o.LastFee)
}
