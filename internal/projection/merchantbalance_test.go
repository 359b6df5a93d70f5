package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/money"
)

func amountPtr(s string) *money.Amount {
	a := money.MustParse(s)
	return &a
}

func balanceEvent(t *testing.T, eventType string, occurredAt time.Time, body any) domain.Event {
	t.Helper()
	return domain.Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: uuid.New(),
		OccurredAt:  occurredAt,
		Body:        body,
	}
}

func TestMerchantBalanceReducer_Relevant(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)

	relevant := balanceEvent(t, domain.EventTypeManualDepositMade, time.Now(), domain.DepositMade{
		MerchantID: uuid.New(),
		Amount:     money.MustParse("10"),
	})
	if !reducer.Relevant(relevant) {
		t.Fatalf("expected deposit event to be relevant")
	}

	irrelevant := balanceEvent(t, domain.EventTypeVoucherIssued, time.Now(), domain.VoucherIssued{
		VoucherID: uuid.New(),
	})
	if reducer.Relevant(irrelevant) {
		t.Fatalf("expected voucher event to be irrelevant to balances")
	}
}

func TestMerchantBalanceReducer_DepositIncreasesBothBalances(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	depositedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, depositedAt, domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("100"),
		DepositedAt: depositedAt,
	}))

	require.Equal(t, "100.0000", state.Balance.String())
	require.Equal(t, "100.0000", state.AvailableBalance.String())
	require.Equal(t, 1, state.DepositCount)
	require.Equal(t, "100.0000", state.TotalDeposited.String())
	require.True(t, state.LastDeposit.Equal(depositedAt))
}

func TestMerchantBalanceReducer_AuthorisedSaleLifecycle(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, base, domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("100"),
		DepositedAt: base,
	}))
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasStarted, base.Add(time.Minute), domain.TransactionStarted{
		MerchantID: merchantID,
		Amount:     amountPtr("40"),
	}))

	// The start holds available balance but leaves the ledger balance alone.
	require.Equal(t, "100.0000", state.Balance.String())
	require.Equal(t, "60.0000", state.AvailableBalance.String())
	require.Equal(t, 1, state.SaleCount)

	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasBeenCompleted, base.Add(2*time.Minute), domain.TransactionCompleted{
		MerchantID:   merchantID,
		IsAuthorised: true,
		Amount:       amountPtr("-40"),
	}))

	require.Equal(t, "60.0000", state.Balance.String())
	require.Equal(t, "60.0000", state.AvailableBalance.String())
	require.Equal(t, "40.0000", state.AuthorisedSales.String())
	require.Equal(t, "0.0000", state.DeclinedSales.String())
}

func TestMerchantBalanceReducer_UnauthorisedCompletionReleasesHold(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, base, domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("100"),
		DepositedAt: base,
	}))
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasStarted, base.Add(time.Minute), domain.TransactionStarted{
		MerchantID: merchantID,
		Amount:     amountPtr("25"),
	}))
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasBeenCompleted, base.Add(2*time.Minute), domain.TransactionCompleted{
		MerchantID:   merchantID,
		IsAuthorised: false,
		Amount:       amountPtr("25"),
	}))

	require.Equal(t, "100.0000", state.Balance.String())
	require.Equal(t, "100.0000", state.AvailableBalance.String())
	require.Equal(t, "25.0000", state.DeclinedSales.String())
	require.Equal(t, "0.0000", state.AuthorisedSales.String())
}

func TestMerchantBalanceReducer_ZeroAmountCompletionIsNoOp(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	before := state

	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasBeenCompleted, base, domain.TransactionCompleted{
		MerchantID:   merchantID,
		IsAuthorised: true,
		Amount:       amountPtr("0"),
	}))
	require.True(t, state.Equal(before), "zero-amount completion must not change state")

	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasBeenCompleted, base, domain.TransactionCompleted{
		MerchantID:   merchantID,
		IsAuthorised: true,
		Amount:       nil,
	}))
	require.True(t, state.Equal(before), "completion without an amount must not change state")
}

func TestMerchantBalanceReducer_StartWithoutAmountCountsSaleOnly(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasStarted, base, domain.TransactionStarted{
		MerchantID: merchantID,
		Amount:     nil,
	}))

	require.Equal(t, "0.0000", state.AvailableBalance.String())
	require.Equal(t, 1, state.SaleCount)
	require.True(t, state.LastSale.Equal(base))
}

func TestMerchantBalanceReducer_CompletionSkewsLastSaleForward(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	occurredAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeTransactionHasBeenCompleted, occurredAt, domain.TransactionCompleted{
		MerchantID:   merchantID,
		IsAuthorised: true,
		Amount:       amountPtr("10"),
	}))

	require.True(t, state.LastSale.Equal(occurredAt.Add(2*time.Second)),
		"last sale should carry the completion skew, got %v", state.LastSale)
}

func TestMerchantBalanceReducer_OutOfOrderTimestampsDoNotRegress(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	newer := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, newer, domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("50"),
		DepositedAt: newer,
	}))
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, older, domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("30"),
		DepositedAt: older,
	}))

	// Amounts accumulate regardless of order; the timestamp keeps the newest.
	require.Equal(t, "80.0000", state.Balance.String())
	require.True(t, state.LastDeposit.Equal(newer), "last deposit must not move backwards")
}

func TestMerchantBalanceReducer_FeeSettlementCreditsBothBalances(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	settledAt := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeMerchantFeeSettled, settledAt, domain.MerchantFeeSettled{
		MerchantID:      merchantID,
		CalculatedValue: money.MustParse("0.2725"),
		SettledAt:       settledAt,
	}))

	require.Equal(t, "0.2725", state.Balance.String())
	require.Equal(t, "0.2725", state.AvailableBalance.String())
	require.Equal(t, 1, state.FeeCount)
	require.Equal(t, "0.2725", state.ValueOfFees.String())
	require.True(t, state.LastFee.Equal(settledAt))
}

func TestMerchantBalanceReducer_WithdrawalDecreasesBothBalances(t *testing.T) {
	reducer := NewMerchantBalanceReducer(0)
	merchantID := uuid.New()
	withdrawnAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	state := domain.NewMerchantBalanceState(merchantID)
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeManualDepositMade, withdrawnAt.Add(-time.Hour), domain.DepositMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("100"),
		DepositedAt: withdrawnAt.Add(-time.Hour),
	}))
	state = reducer.Apply(state, balanceEvent(t, domain.EventTypeWithdrawalMade, withdrawnAt, domain.WithdrawalMade{
		MerchantID:  merchantID,
		Amount:      money.MustParse("30"),
		WithdrawnAt: withdrawnAt,
	}))

	require.Equal(t, "70.0000", state.Balance.String())
	require.Equal(t, "70.0000", state.AvailableBalance.String())
	require.Equal(t, 1, state.WithdrawalCount)
	require.Equal(t, "30.0000", state.TotalWithdrawn.String())
	require.True(t, state.LastWithdrawal.Equal(withdrawnAt))
}
