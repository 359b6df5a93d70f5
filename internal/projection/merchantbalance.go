/**
 * @description
 * The merchant balance reducer. Pure derivation of the merchant balance read
 * model from balance-affecting events, with the ordering protections that
 * make replay convergent:
 *
 *   - "last activity" timestamps advance only when the event's own timestamp
 *     is strictly newer than the stored one, so out-of-order delivery cannot
 *     move them backwards;
 *   - completion timestamps are skewed forward by a small fixed amount when
 *     used for "last" fields, to sequence correctly against same-second fee
 *     settlement events;
 *   - zero-amount completions (logon-only transactions) produce no change.
 */

package projection

import (
	"time"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// DefaultCompletionSkew is the forward offset applied to completion
// timestamps before they compete for the last-sale field.
const DefaultCompletionSkew = 2 * time.Second

// MerchantBalanceReducer folds balance-affecting events into
// MerchantBalanceState.
type MerchantBalanceReducer struct {
	completionSkew time.Duration
}

// NewMerchantBalanceReducer returns a reducer with the given completion
// skew; zero or negative picks the default.
func NewMerchantBalanceReducer(completionSkew time.Duration) *MerchantBalanceReducer {
	if completionSkew <= 0 {
		completionSkew = DefaultCompletionSkew
	}
	return &MerchantBalanceReducer{completionSkew: completionSkew}
}

// Relevant reports whether the event can affect a merchant balance.
func (r *MerchantBalanceReducer) Relevant(ev domain.Event) bool {
	switch ev.Body.(type) {
	case domain.MerchantCreated,
		domain.DepositMade,
		domain.WithdrawalMade,
		domain.TransactionStarted,
		domain.TransactionCompleted,
		domain.MerchantFeeSettled:
		return true
	default:
		return false
	}
}

// Apply folds one event into the state. The input is copied, patched and
// returned; events outside the match return the input unchanged.
func (r *MerchantBalanceReducer) Apply(state domain.MerchantBalanceState, ev domain.Event) domain.MerchantBalanceState {
	switch body := ev.Body.(type) {
	case domain.MerchantCreated:
		return r.applyCreated(state, body)
	case domain.DepositMade:
		return r.applyDeposit(state, body)
	case domain.WithdrawalMade:
		return r.applyWithdrawal(state, body)
	case domain.TransactionStarted:
		return r.applyStarted(state, ev, body)
	case domain.TransactionCompleted:
		return r.applyCompleted(state, ev, body)
	case domain.MerchantFeeSettled:
		return r.applyFeeSettled(state, body)
	default:
		return state
	}
}

func (r *MerchantBalanceReducer) applyCreated(state domain.MerchantBalanceState, body domain.MerchantCreated) domain.MerchantBalanceState {
	next := state
	next.MerchantID = body.MerchantID
	next.EstateID = body.EstateID
	next.MerchantName = body.MerchantName
	return next
}

func (r *MerchantBalanceReducer) applyDeposit(state domain.MerchantBalanceState, body domain.DepositMade) domain.MerchantBalanceState {
	next := state
	next.Balance = next.Balance.Add(body.Amount)
	next.AvailableBalance = next.AvailableBalance.Add(body.Amount)
	next.DepositCount++
	next.TotalDeposited = next.TotalDeposited.Add(body.Amount)
	next.LastDeposit = laterOf(next.LastDeposit, body.DepositedAt)
	return next
}

func (r *MerchantBalanceReducer) applyWithdrawal(state domain.MerchantBalanceState, body domain.WithdrawalMade) domain.MerchantBalanceState {
	next := state
	next.Balance = next.Balance.Sub(body.Amount)
	next.AvailableBalance = next.AvailableBalance.Sub(body.Amount)
	next.WithdrawalCount++
	next.TotalWithdrawn = next.TotalWithdrawn.Add(body.Amount)
	next.LastWithdrawal = laterOf(next.LastWithdrawal, body.WithdrawnAt)
	return next
}

func (r *MerchantBalanceReducer) applyStarted(state domain.MerchantBalanceState, ev domain.Event, body domain.TransactionStarted) domain.MerchantBalanceState {
	amount := money.Zero
	if body.Amount != nil {
		amount = *body.Amount
	}

	next := state
	next.AvailableBalance = next.AvailableBalance.Sub(amount)
	next.SaleCount++
	next.LastSale = laterOf(next.LastSale, ev.OccurredAt)
	return next
}

func (r *MerchantBalanceReducer) applyCompleted(state domain.MerchantBalanceState, ev domain.Event, body domain.TransactionCompleted) domain.MerchantBalanceState {
	if body.Amount == nil || body.Amount.IsZero() {
		// Logon-only transactions carry no value and must not touch state.
		return state
	}
	amount := body.Amount.Abs()

	next := state
	if body.IsAuthorised {
		next.Balance = next.Balance.Sub(amount)
		next.AuthorisedSales = next.AuthorisedSales.Add(amount)
	} else {
		// Release the hold the start placed on available balance.
		next.AvailableBalance = next.AvailableBalance.Add(amount)
		next.DeclinedSales = next.DeclinedSales.Add(amount)
	}
	next.LastSale = laterOf(next.LastSale, ev.OccurredAt.Add(r.completionSkew))
	return next
}

func (r *MerchantBalanceReducer) applyFeeSettled(state domain.MerchantBalanceState, body domain.MerchantFeeSettled) domain.MerchantBalanceState {
	next := state
	next.Balance = next.Balance.Add(body.CalculatedValue)
	next.AvailableBalance = next.AvailableBalance.Add(body.CalculatedValue)
	next.FeeCount++
	next.ValueOfFees = next.ValueOfFees.Add(body.CalculatedValue)
	next.LastFee = laterOf(next.LastFee, body.SettledAt)
	return next
}

// laterOf keeps the stored value unless the candidate is strictly newer.
func laterOf(stored, candidate time.Time) time.Time {
	if candidate.After(stored) {
		return candidate
	}
	return stored
}
