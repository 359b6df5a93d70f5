package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/money"
)

func TestVoucherReducerLifecycle(t *testing.T) {
	reducer := NewVoucherReducer()
	voucherID := uuid.New()
	estateID := uuid.New()
	generatedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := domain.NewVoucherState(voucherID)
	state = reducer.Apply(state, domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeVoucherGenerated,
		AggregateID: voucherID,
		OccurredAt:  generatedAt,
		Body: domain.VoucherGenerated{
			VoucherID: voucherID,
			EstateID:  estateID,
			Value:     money.MustParse("25"),
			ExpiresAt: generatedAt.AddDate(0, 1, 0),
		},
	})

	if !state.Generated || state.Issued || state.Redeemed {
		t.Fatalf("unexpected lifecycle flags after generation: %+v", state)
	}
	if state.Value.String() != "25.0000" {
		t.Fatalf("unexpected value: %s", state.Value)
	}

	issuedAt := generatedAt.Add(time.Minute)
	issued := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeVoucherIssued,
		AggregateID: voucherID,
		OccurredAt:  issuedAt,
		Body: domain.VoucherIssued{
			VoucherID:      voucherID,
			RecipientEmail: "holder@example.com",
			Barcode:        "12345678",
			IssuedAt:       issuedAt,
		},
	}
	state = reducer.Apply(state, issued)

	if !state.Issued || state.RecipientEmail != "holder@example.com" {
		t.Fatalf("issue not applied: %+v", state)
	}

	// Re-applying the same event reproduces the same state, so the
	// orchestrator detects an unchanged reduction.
	again := reducer.Apply(state, issued)
	if !again.Equal(state) {
		t.Fatalf("re-applied issue must be a no-op")
	}

	redeemedAt := issuedAt.Add(time.Hour)
	state = reducer.Apply(state, domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeVoucherFullyRedeemed,
		AggregateID: voucherID,
		OccurredAt:  redeemedAt,
		Body:        domain.VoucherFullyRedeemed{VoucherID: voucherID, RedeemedAt: redeemedAt},
	})
	if !state.Redeemed || !state.RedeemedAt.Equal(redeemedAt) {
		t.Fatalf("redemption not applied: %+v", state)
	}
}
