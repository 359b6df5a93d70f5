/**
 * @description
 * The merchant ledger dispatcher. From each recognized event it derives at
 * most one append-only ledger row, keyed (aggregate_id, original_event_id)
 * so redelivery cannot produce a second row, and notifies downstream
 * consumers when a row was actually written.
 *
 * @notes
 * - Events the balance reducer declared irrelevant never reach Dispatch, so
 *   the derivation table below only distinguishes among relevant kinds.
 * - An unauthorised completion changes no balance and gets no row.
 */

package projection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/store"
)

// Ledger entry references, deterministic per event type.
const (
	refManualDeposit = "Manual Deposit"
	refAutoDeposit   = "Automatic Deposit"
	refWithdrawal    = "Merchant Withdrawal"
	refCompletedSale = "Transaction Completed"
	refSettledFee    = "Settled Merchant Fee"
)

// ledgerRecordedRoutingKey is the fan-out routing key for recorded entries.
const ledgerRecordedRoutingKey = "projection.ledger.recorded"

// Publisher publishes derived events to the platform exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// LedgerRecordedEvent is the payload published when a ledger row is written.
type LedgerRecordedEvent struct {
	MerchantID      uuid.UUID `json:"merchant_id"`
	EstateID        uuid.UUID `json:"estate_id"`
	OriginalEventID uuid.UUID `json:"original_event_id"`
	Amount          string    `json:"amount"`
	Direction       string    `json:"direction"`
	Reference       string    `json:"reference"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// MerchantLedgerDispatcher persists derived ledger rows idempotently.
type MerchantLedgerDispatcher struct {
	ledger    store.LedgerStore
	publisher Publisher
	exchange  string
	logger    *slog.Logger
}

// NewMerchantLedgerDispatcher wires the dispatcher. publisher may be nil to
// disable fan-out notifications.
func NewMerchantLedgerDispatcher(ledger store.LedgerStore, publisher Publisher, exchange string, logger *slog.Logger) *MerchantLedgerDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MerchantLedgerDispatcher{
		ledger:    ledger,
		publisher: publisher,
		exchange:  exchange,
		logger:    logger.With("component", "ledger_dispatcher"),
	}
}

// Dispatch derives and persists the ledger row for the event, if any.
func (d *MerchantLedgerDispatcher) Dispatch(ctx context.Context, newState domain.MerchantBalanceState, ev domain.Event) error {
	entry, ok := DeriveLedgerEntry(newState, ev)
	if !ok {
		return nil
	}

	inserted, err := d.ledger.InsertLedgerEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("insert ledger entry for event %s: %w", ev.ID, err)
	}
	if !inserted {
		// Redelivery: the row already exists, which is the idempotency
		// contract working, not a failure.
		return nil
	}

	if d.publisher != nil {
		notice := LedgerRecordedEvent{
			MerchantID:      entry.MerchantID,
			EstateID:        entry.EstateID,
			OriginalEventID: entry.OriginalEventID,
			Amount:          entry.ChangeAmount.String(),
			Direction:       string(entry.Direction),
			Reference:       entry.Reference,
			OccurredAt:      entry.OccurredAt,
		}
		if err := d.publisher.Publish(ctx, d.exchange, ledgerRecordedRoutingKey, notice); err != nil {
			// The row is durable; the notification is best effort.
			d.logger.Warn("ledger fan-out publish failed",
				"event_id", ev.ID, "merchant_id", entry.MerchantID, "error", err)
		}
	}
	return nil
}

// DeriveLedgerEntry maps one event to its ledger row. The boolean is false
// for event kinds that never produce a row (starts, creations, unauthorised
// or zero-amount completions).
func DeriveLedgerEntry(state domain.MerchantBalanceState, ev domain.Event) (domain.LedgerEntry, bool) {
	base := domain.LedgerEntry{
		AggregateID:     ev.AggregateID,
		OriginalEventID: ev.ID,
		MerchantID:      state.MerchantID,
		EstateID:        state.EstateID,
		OccurredAt:      ev.OccurredAt,
	}

	switch body := ev.Body.(type) {
	case domain.DepositMade:
		base.ChangeAmount = body.Amount
		base.Direction = domain.EntryCredit
		base.Reference = refManualDeposit
		if ev.Type == domain.EventTypeAutomaticDepositMade {
			base.Reference = refAutoDeposit
		}
		return base, true

	case domain.WithdrawalMade:
		base.ChangeAmount = body.Amount
		base.Direction = domain.EntryDebit
		base.Reference = refWithdrawal
		return base, true

	case domain.TransactionCompleted:
		if !body.IsAuthorised || body.Amount == nil || body.Amount.IsZero() {
			return domain.LedgerEntry{}, false
		}
		base.ChangeAmount = body.Amount.Abs()
		base.Direction = domain.EntryDebit
		base.Reference = refCompletedSale
		return base, true

	case domain.MerchantFeeSettled:
		base.ChangeAmount = body.CalculatedValue
		base.Direction = domain.EntryCredit
		base.Reference = refSettledFee
		return base, true

	default:
		return domain.LedgerEntry{}, false
	}
}
