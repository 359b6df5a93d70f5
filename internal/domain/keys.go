/**
 * @description
 * Partition-key resolution. Each projection groups its state under one
 * identifier; most events carry that identifier explicitly in the payload,
 * with the envelope's aggregate id as the fallback where the aggregate IS
 * the partition.
 */

package domain

import "github.com/google/uuid"

// MerchantIDFor resolves the merchant partition key from an event.
func MerchantIDFor(ev Event) (uuid.UUID, bool) {
	var id uuid.UUID
	switch body := ev.Body.(type) {
	case MerchantCreated:
		id = body.MerchantID
	case DepositMade:
		id = body.MerchantID
	case WithdrawalMade:
		id = body.MerchantID
	case TransactionStarted:
		id = body.MerchantID
	case TransactionCompleted:
		id = body.MerchantID
	case MerchantFeeSettled:
		id = body.MerchantID
	default:
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// VoucherIDFor resolves the voucher partition key from an event. Voucher
// events are emitted by the voucher aggregate itself, so the aggregate id is
// an acceptable fallback.
func VoucherIDFor(ev Event) (uuid.UUID, bool) {
	var id uuid.UUID
	switch body := ev.Body.(type) {
	case VoucherGenerated:
		id = body.VoucherID
	case VoucherIssued:
		id = body.VoucherID
	case VoucherFullyRedeemed:
		id = body.VoucherID
	default:
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		id = ev.AggregateID
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// SettlementIDFor resolves the settlement partition key from an event.
func SettlementIDFor(ev Event) (uuid.UUID, bool) {
	var id uuid.UUID
	switch body := ev.Body.(type) {
	case SettlementCreated:
		id = body.SettlementID
	case MerchantFeeAddedToSettlement:
		id = body.SettlementID
	case SettlementProcessingStarted:
		id = body.SettlementID
	case SettlementCompleted:
		id = body.SettlementID
	default:
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		id = ev.AggregateID
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EstateIDFor resolves the estate partition key from an event.
func EstateIDFor(ev Event) (uuid.UUID, bool) {
	var id uuid.UUID
	switch body := ev.Body.(type) {
	case EstateCreated:
		id = body.EstateID
	default:
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		id = ev.AggregateID
	}
	if id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
