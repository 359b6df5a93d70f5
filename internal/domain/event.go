/**
 * @description
 * This file defines the domain event envelope delivered by the event log and
 * the closed set of typed payloads the projection engine understands. Events
 * arrive as JSON with a string type tag; `ParseEvent` resolves the tag against
 * an explicit table built at init, never by reflection, so the set of handled
 * event kinds is enumerable and statically checkable.
 *
 * @notes
 * - Delivery is at-least-once and only per-aggregate ordered. Everything
 *   downstream (reducers, stores, dispatchers) must stay correct under
 *   duplicate and out-of-order arrival.
 *
 * @dependencies
 * - github.com/google/uuid: Event and aggregate identifiers.
 * - internal/money: Fixed-point amounts inside payloads.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/money"
)

// ErrUnknownEventType reports a type tag outside the registered set.
var ErrUnknownEventType = errors.New("unknown event type")

// Event type tags as emitted by the event log.
const (
	EventTypeEstateCreated                = "EstateCreatedEvent"
	EventTypeMerchantCreated              = "MerchantCreatedEvent"
	EventTypeManualDepositMade            = "ManualDepositMadeEvent"
	EventTypeAutomaticDepositMade         = "AutomaticDepositMadeEvent"
	EventTypeWithdrawalMade               = "WithdrawalMadeEvent"
	EventTypeTransactionHasStarted        = "TransactionHasStartedEvent"
	EventTypeTransactionHasBeenCompleted  = "TransactionHasBeenCompletedEvent"
	EventTypeMerchantFeeSettled           = "MerchantFeeSettledEvent"
	EventTypeVoucherGenerated             = "VoucherGeneratedEvent"
	EventTypeVoucherIssued                = "VoucherIssuedEvent"
	EventTypeVoucherFullyRedeemed         = "VoucherFullyRedeemedEvent"
	EventTypeSettlementCreated            = "SettlementCreatedForDateEvent"
	EventTypeMerchantFeeAddedToSettlement = "MerchantFeeAddedToSettlementEvent"
	EventTypeSettlementProcessingStarted  = "SettlementProcessingStartedEvent"
	EventTypeSettlementCompleted          = "SettlementCompletedEvent"
)

// EventEnvelope is the wire form of one domain event.
type EventEnvelope struct {
	EventID     uuid.UUID       `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Event is a decoded domain event: the envelope identity fields plus a typed
// body from the closed set below.
type Event struct {
	ID          uuid.UUID
	Type        string
	AggregateID uuid.UUID
	OccurredAt  time.Time
	Body        any
}

// EstateCreated announces a new top-level tenant.
type EstateCreated struct {
	EstateID   uuid.UUID `json:"estate_id"`
	EstateName string    `json:"estate_name"`
}

// MerchantCreated seeds a merchant under an estate.
type MerchantCreated struct {
	EstateID     uuid.UUID `json:"estate_id"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	MerchantName string    `json:"merchant_name"`
}

// DepositMade covers both manual and automatic deposits; the envelope type
// tag distinguishes them.
type DepositMade struct {
	EstateID    uuid.UUID    `json:"estate_id"`
	MerchantID  uuid.UUID    `json:"merchant_id"`
	DepositID   uuid.UUID    `json:"deposit_id"`
	Amount      money.Amount `json:"amount"`
	Reference   string       `json:"reference"`
	DepositedAt time.Time    `json:"deposited_at"`
}

// WithdrawalMade mirrors DepositMade on the outbound side.
type WithdrawalMade struct {
	EstateID     uuid.UUID    `json:"estate_id"`
	MerchantID   uuid.UUID    `json:"merchant_id"`
	WithdrawalID uuid.UUID    `json:"withdrawal_id"`
	Amount       money.Amount `json:"amount"`
	WithdrawnAt  time.Time    `json:"withdrawn_at"`
}

// TransactionStarted opens a transaction and places a hold on available
// balance. Amount may be absent for logon transactions.
type TransactionStarted struct {
	EstateID        uuid.UUID     `json:"estate_id"`
	MerchantID      uuid.UUID     `json:"merchant_id"`
	TransactionID   uuid.UUID     `json:"transaction_id"`
	TransactionType string        `json:"transaction_type"`
	Amount          *money.Amount `json:"amount,omitempty"`
}

// TransactionCompleted closes a transaction. Amount is signed; consumers
// normalize the sign before applying it.
type TransactionCompleted struct {
	EstateID      uuid.UUID     `json:"estate_id"`
	MerchantID    uuid.UUID     `json:"merchant_id"`
	TransactionID uuid.UUID     `json:"transaction_id"`
	IsAuthorised  bool          `json:"is_authorised"`
	ResponseCode  string        `json:"response_code"`
	Amount        *money.Amount `json:"amount,omitempty"`
}

// MerchantFeeSettled credits a settled fee back to the merchant.
type MerchantFeeSettled struct {
	EstateID        uuid.UUID    `json:"estate_id"`
	MerchantID      uuid.UUID    `json:"merchant_id"`
	TransactionID   uuid.UUID    `json:"transaction_id"`
	FeeID           uuid.UUID    `json:"fee_id"`
	CalculatedValue money.Amount `json:"calculated_value"`
	SettledAt       time.Time    `json:"settled_at"`
}

// VoucherGenerated creates a voucher against a transaction.
type VoucherGenerated struct {
	EstateID      uuid.UUID    `json:"estate_id"`
	VoucherID     uuid.UUID    `json:"voucher_id"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	OperatorID    string       `json:"operator_id"`
	Value         money.Amount `json:"value"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

// VoucherIssued marks a generated voucher as delivered to its recipient.
type VoucherIssued struct {
	EstateID       uuid.UUID `json:"estate_id"`
	VoucherID      uuid.UUID `json:"voucher_id"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientPhone string    `json:"recipient_phone"`
	Barcode        string    `json:"barcode"`
	IssuedAt       time.Time `json:"issued_at"`
}

// VoucherFullyRedeemed closes out a voucher's remaining balance.
type VoucherFullyRedeemed struct {
	EstateID   uuid.UUID `json:"estate_id"`
	VoucherID  uuid.UUID `json:"voucher_id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// SettlementCreated opens a settlement run for an estate and date.
type SettlementCreated struct {
	EstateID       uuid.UUID `json:"estate_id"`
	SettlementID   uuid.UUID `json:"settlement_id"`
	SettlementDate time.Time `json:"settlement_date"`
}

// MerchantFeeAddedToSettlement accumulates one fee into a settlement run.
type MerchantFeeAddedToSettlement struct {
	EstateID      uuid.UUID    `json:"estate_id"`
	SettlementID  uuid.UUID    `json:"settlement_id"`
	MerchantID    uuid.UUID    `json:"merchant_id"`
	TransactionID uuid.UUID    `json:"transaction_id"`
	FeeID         uuid.UUID    `json:"fee_id"`
	FeeValue      money.Amount `json:"fee_value"`
}

// SettlementProcessingStarted marks the run as in flight.
type SettlementProcessingStarted struct {
	EstateID     uuid.UUID `json:"estate_id"`
	SettlementID uuid.UUID `json:"settlement_id"`
	StartedAt    time.Time `json:"started_at"`
}

// SettlementCompleted closes the run.
type SettlementCompleted struct {
	EstateID     uuid.UUID `json:"estate_id"`
	SettlementID uuid.UUID `json:"settlement_id"`
	CompletedAt  time.Time `json:"completed_at"`
}

// payloadDecoders is the explicit type registration table. New event kinds
// are added here and nowhere else.
var payloadDecoders = map[string]func([]byte) (any, error){
	EventTypeEstateCreated:                decodeInto[EstateCreated],
	EventTypeMerchantCreated:              decodeInto[MerchantCreated],
	EventTypeManualDepositMade:            decodeInto[DepositMade],
	EventTypeAutomaticDepositMade:         decodeInto[DepositMade],
	EventTypeWithdrawalMade:               decodeInto[WithdrawalMade],
	EventTypeTransactionHasStarted:        decodeInto[TransactionStarted],
	EventTypeTransactionHasBeenCompleted:  decodeInto[TransactionCompleted],
	EventTypeMerchantFeeSettled:           decodeInto[MerchantFeeSettled],
	EventTypeVoucherGenerated:             decodeInto[VoucherGenerated],
	EventTypeVoucherIssued:                decodeInto[VoucherIssued],
	EventTypeVoucherFullyRedeemed:         decodeInto[VoucherFullyRedeemed],
	EventTypeSettlementCreated:            decodeInto[SettlementCreated],
	EventTypeMerchantFeeAddedToSettlement: decodeInto[MerchantFeeAddedToSettlement],
	EventTypeSettlementProcessingStarted:  decodeInto[SettlementProcessingStarted],
	EventTypeSettlementCompleted:          decodeInto[SettlementCompleted],
}

func decodeInto[T any](raw []byte) (any, error) {
	var body T
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// KnownEventType reports whether the tag is in the registered set.
func KnownEventType(eventType string) bool {
	_, ok := payloadDecoders[eventType]
	return ok
}

// DecodeEnvelope resolves an envelope's type tag and decodes its payload
// into the matching typed body.
func DecodeEnvelope(env EventEnvelope) (Event, error) {
	decode, ok := payloadDecoders[env.EventType]
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, env.EventType)
	}

	body, err := decode(env.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}

	return Event{
		ID:          env.EventID,
		Type:        env.EventType,
		AggregateID: env.AggregateID,
		OccurredAt:  env.OccurredAt,
		Body:        body,
	}, nil
}

// ParseEvent decodes a raw message from the event log into a typed Event.
func ParseEvent(raw []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventID == uuid.Nil {
		return Event{}, errors.New("event envelope missing event_id")
	}
	if env.AggregateID == uuid.Nil {
		return Event{}, errors.New("event envelope missing aggregate_id")
	}
	return DecodeEnvelope(env)
}
