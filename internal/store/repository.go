/**
 * @description
 * This file defines the storage contracts the projection engine depends on
 * and the error taxonomy callers use to decide on redelivery. Version
 * conflicts on state upserts and uniqueness violations on ledger inserts are
 * resolved INSIDE the implementations and never surface as errors: both mean
 * "another delivery of the same event already won", which is success.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: Identifier types.
 * - internal/domain: Read-model states and ledger entries.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/transactionprocessing/projection-service/internal/domain"
)

var (
	// ErrStateNotFound is returned by the read-side queries when no row
	// exists. The projection Load path never returns it; a missing row there
	// resolves to the default zero state.
	ErrStateNotFound = errors.New("state not found")

	// ErrMalformedPartitionKey reports an event whose payload carries no
	// usable partition key. Non-retryable: redelivery cannot fix the payload.
	ErrMalformedPartitionKey = errors.New("malformed partition key")
)

// TransientError wraps a storage failure the caller should retry by letting
// the event be redelivered.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (anywhere in its chain) is retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// MerchantBalanceStore persists the merchant balance projection.
type MerchantBalanceStore interface {
	Load(ctx context.Context, ev domain.Event) (domain.MerchantBalanceState, error)
	Save(ctx context.Context, state domain.MerchantBalanceState, ev domain.Event) error
}

// VoucherStore persists the voucher projection.
type VoucherStore interface {
	Load(ctx context.Context, ev domain.Event) (domain.VoucherState, error)
	Save(ctx context.Context, state domain.VoucherState, ev domain.Event) error
}

// SettlementStore persists the settlement projection.
type SettlementStore interface {
	Load(ctx context.Context, ev domain.Event) (domain.SettlementState, error)
	Save(ctx context.Context, state domain.SettlementState, ev domain.Event) error
}

// EstateStore persists the estate projection.
type EstateStore interface {
	Load(ctx context.Context, ev domain.Event) (domain.EstateState, error)
	Save(ctx context.Context, state domain.EstateState, ev domain.Event) error
}

// LedgerStore persists append-only merchant ledger entries.
type LedgerStore interface {
	// InsertLedgerEntry appends one entry. The boolean reports whether a row
	// was actually written; false means the (aggregate_id, original_event_id)
	// pair already existed and the insert was suppressed.
	InsertLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (bool, error)
	ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error)
}

// EstateProvisioner performs the one-time per-tenant schema provisioning
// triggered by estate creation. Must be idempotent.
type EstateProvisioner interface {
	ProvisionEstateSchema(ctx context.Context, estateID uuid.UUID) error
}

// ReadRepository serves the query API over materialized state.
type ReadRepository interface {
	GetMerchantBalance(ctx context.Context, merchantID uuid.UUID) (*domain.MerchantBalanceState, error)
	GetVoucher(ctx context.Context, voucherID uuid.UUID) (*domain.VoucherState, error)
	GetSettlement(ctx context.Context, settlementID uuid.UUID) (*domain.SettlementState, error)
	ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error)
}
