/**
 * @description
 * The append-only merchant ledger entry. One row per balance-affecting event,
 * keyed by (aggregate_id, original_event_id) so that redelivery of the same
 * domain event can never produce a second row.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// EntryDirection says which side of the merchant balance an entry moves.
type EntryDirection string

const (
	EntryCredit EntryDirection = "C"
	EntryDebit  EntryDirection = "D"
)

// LedgerEntry is one immutable audit row derived from a domain event.
type LedgerEntry struct {
	AggregateID     uuid.UUID      `json:"aggregate_id"`
	OriginalEventID uuid.UUID      `json:"original_event_id"`
	MerchantID      uuid.UUID      `json:"merchant_id"`
	EstateID        uuid.UUID      `json:"estate_id"`
	ChangeAmount    money.Amount   `json:"change_amount"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Reference       string         `json:"reference"`
	Direction       EntryDirection `json:"direction"`
}
