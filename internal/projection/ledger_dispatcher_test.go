package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/money"
	"github.com/transactionprocessing/projection-service/internal/store"
)

type stubLedgerStore struct {
	inserted  bool
	insertErr error

	insertCalls int
	lastEntry   domain.LedgerEntry
}

func (s *stubLedgerStore) InsertLedgerEntry(_ context.Context, entry domain.LedgerEntry) (bool, error) {
	s.insertCalls++
	s.lastEntry = entry
	return s.inserted, s.insertErr
}

func (s *stubLedgerStore) ListLedgerEntries(_ context.Context, _ uuid.UUID, _, _ int) ([]domain.LedgerEntry, error) {
	return nil, nil
}

type stubPublisher struct {
	publishErr   error
	publishCalls int
	lastExchange string
	lastKey      string
	lastBody     interface{}
}

func (p *stubPublisher) Publish(_ context.Context, exchange, routingKey string, body interface{}) error {
	p.publishCalls++
	p.lastExchange = exchange
	p.lastKey = routingKey
	p.lastBody = body
	return p.publishErr
}

func balanceState() domain.MerchantBalanceState {
	return domain.MerchantBalanceState{
		MerchantID: uuid.New(),
		EstateID:   uuid.New(),
	}
}

func TestDeriveLedgerEntryDeposits(t *testing.T) {
	state := balanceState()
	occurredAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	manual := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeManualDepositMade,
		AggregateID: uuid.New(),
		OccurredAt:  occurredAt,
		Body:        domain.DepositMade{MerchantID: state.MerchantID, Amount: money.MustParse("100")},
	}
	entry, ok := DeriveLedgerEntry(state, manual)
	if !ok {
		t.Fatalf("expected a ledger row for a manual deposit")
	}
	if entry.Direction != domain.EntryCredit || entry.Reference != "Manual Deposit" {
		t.Fatalf("unexpected derivation: direction=%s reference=%q", entry.Direction, entry.Reference)
	}
	if entry.OriginalEventID != manual.ID || entry.AggregateID != manual.AggregateID {
		t.Fatalf("idempotency key must carry the event identity")
	}

	auto := manual
	auto.ID = uuid.New()
	auto.Type = domain.EventTypeAutomaticDepositMade
	entry, ok = DeriveLedgerEntry(state, auto)
	if !ok || entry.Reference != "Automatic Deposit" {
		t.Fatalf("automatic deposit should derive its own reference, got %q", entry.Reference)
	}
}

func TestDeriveLedgerEntryCompletions(t *testing.T) {
	state := balanceState()
	amount := money.MustParse("-40")

	authorised := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeTransactionHasBeenCompleted,
		AggregateID: uuid.New(),
		OccurredAt:  time.Now(),
		Body:        domain.TransactionCompleted{MerchantID: state.MerchantID, IsAuthorised: true, Amount: &amount},
	}
	entry, ok := DeriveLedgerEntry(state, authorised)
	if !ok {
		t.Fatalf("expected a ledger row for an authorised completion")
	}
	if entry.Direction != domain.EntryDebit || entry.ChangeAmount.String() != "40.0000" {
		t.Fatalf("authorised completion should debit the absolute amount, got %s %s",
			entry.Direction, entry.ChangeAmount)
	}

	declined := authorised
	declined.ID = uuid.New()
	declined.Body = domain.TransactionCompleted{MerchantID: state.MerchantID, IsAuthorised: false, Amount: &amount}
	if _, ok := DeriveLedgerEntry(state, declined); ok {
		t.Fatalf("unauthorised completion must not produce a ledger row")
	}

	zero := money.MustParse("0")
	logon := authorised
	logon.ID = uuid.New()
	logon.Body = domain.TransactionCompleted{MerchantID: state.MerchantID, IsAuthorised: true, Amount: &zero}
	if _, ok := DeriveLedgerEntry(state, logon); ok {
		t.Fatalf("zero-amount completion must not produce a ledger row")
	}
}

func TestDeriveLedgerEntryStartsProduceNoRow(t *testing.T) {
	state := balanceState()
	amount := money.MustParse("40")
	started := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeTransactionHasStarted,
		AggregateID: uuid.New(),
		OccurredAt:  time.Now(),
		Body:        domain.TransactionStarted{MerchantID: state.MerchantID, Amount: &amount},
	}
	if _, ok := DeriveLedgerEntry(state, started); ok {
		t.Fatalf("transaction starts move holds, not money, and get no ledger row")
	}
}

func TestDispatchPublishesOnlyOnFreshInsert(t *testing.T) {
	ledger := &stubLedgerStore{inserted: true}
	publisher := &stubPublisher{}
	dispatcher := NewMerchantLedgerDispatcher(ledger, publisher, "platform.events", nil)

	state := balanceState()
	ev := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeManualDepositMade,
		AggregateID: uuid.New(),
		OccurredAt:  time.Now(),
		Body:        domain.DepositMade{MerchantID: state.MerchantID, Amount: money.MustParse("100")},
	}

	if err := dispatcher.Dispatch(context.Background(), state, ev); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if publisher.publishCalls != 1 {
		t.Fatalf("expected one fan-out publish, got %d", publisher.publishCalls)
	}
	if publisher.lastExchange != "platform.events" || publisher.lastKey != "projection.ledger.recorded" {
		t.Fatalf("unexpected publish target: %s/%s", publisher.lastExchange, publisher.lastKey)
	}

	// Redelivery: the unique key suppressed the insert, so no second notice.
	ledger.inserted = false
	if err := dispatcher.Dispatch(context.Background(), state, ev); err != nil {
		t.Fatalf("duplicate dispatch must succeed, got %v", err)
	}
	if publisher.publishCalls != 1 {
		t.Fatalf("duplicate insert must not publish again, got %d calls", publisher.publishCalls)
	}
}

func TestDispatchInsertFailurePropagates(t *testing.T) {
	ledger := &stubLedgerStore{insertErr: &store.TransientError{Err: errors.New("connection reset")}}
	dispatcher := NewMerchantLedgerDispatcher(ledger, nil, "", nil)

	state := balanceState()
	ev := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeWithdrawalMade,
		AggregateID: uuid.New(),
		OccurredAt:  time.Now(),
		Body:        domain.WithdrawalMade{MerchantID: state.MerchantID, Amount: money.MustParse("30")},
	}

	err := dispatcher.Dispatch(context.Background(), state, ev)
	if err == nil || !store.IsTransient(err) {
		t.Fatalf("expected a transient insert failure to propagate, got %v", err)
	}
}

func TestDispatchPublishFailureIsSwallowed(t *testing.T) {
	ledger := &stubLedgerStore{inserted: true}
	publisher := &stubPublisher{publishErr: errors.New("broker unavailable")}
	dispatcher := NewMerchantLedgerDispatcher(ledger, publisher, "platform.events", nil)

	state := balanceState()
	ev := domain.Event{
		ID:          uuid.New(),
		Type:        domain.EventTypeMerchantFeeSettled,
		AggregateID: uuid.New(),
		OccurredAt:  time.Now(),
		Body:        domain.MerchantFeeSettled{MerchantID: state.MerchantID, CalculatedValue: money.MustParse("0.5")},
	}

	if err := dispatcher.Dispatch(context.Background(), state, ev); err != nil {
		t.Fatalf("a failed fan-out notice must not fail the dispatch, got %v", err)
	}
}
