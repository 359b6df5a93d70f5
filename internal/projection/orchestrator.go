/**
 * @description
 * The per-event state machine for one projection type:
 *
 *   Received -> Irrelevant
 *            -> Loading -> Loaded -> Reducing -> Unchanged
 *                                 -> Changed -> Saving -> Saved
 *                                            -> Dispatching -> Dispatched
 *
 * Terminal outcomes are always explicit Result values. A save that was not
 * confirmed (error or cancellation) never proceeds to dispatch; redelivery
 * re-enters at the top and the store/ledger idempotency keys make the replay
 * safe.
 *
 * @dependencies
 * - log/slog: Structured logging of failures and reducer faults.
 * - internal/domain, internal/store: Events and error classification.
 */

package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/store"
)

// Orchestrator drives one read-model type. It holds no mutable state of its
// own; any number of events may flow through it concurrently.
type Orchestrator[S State[S]] struct {
	name       string
	reducer    Reducer[S]
	store      StateStore[S]
	dispatcher Dispatcher[S]
	dedupe     *EventDedupe
	logger     *slog.Logger
}

// NewOrchestrator wires a projection. dispatcher and dedupe may be nil for
// read models without ledger fan-out or without a cache.
func NewOrchestrator[S State[S]](
	name string,
	reducer Reducer[S],
	stateStore StateStore[S],
	dispatcher Dispatcher[S],
	dedupe *EventDedupe,
	logger *slog.Logger,
) *Orchestrator[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator[S]{
		name:       name,
		reducer:    reducer,
		store:      stateStore,
		dispatcher: dispatcher,
		dedupe:     dedupe,
		logger:     logger.With("projection", name),
	}
}

// Name identifies the projection in the router's registration table.
func (o *Orchestrator[S]) Name() string { return o.name }

// Handle runs one event through the state machine.
func (o *Orchestrator[S]) Handle(ctx context.Context, ev domain.Event) Result {
	if !o.reducer.Relevant(ev) {
		return succeeded(OutcomeIrrelevant)
	}

	if o.dedupe.Seen(ctx, o.name, ev.ID) {
		return succeeded(OutcomeDuplicate)
	}

	state, err := o.store.Load(ctx, ev)
	if err != nil {
		if errors.Is(err, store.ErrMalformedPartitionKey) {
			return failed(fmt.Errorf("load state for event %s: %w", ev.ID, err), false)
		}
		return failed(fmt.Errorf("load state for event %s: %w", ev.ID, err), true)
	}

	newState, err := o.applyReducer(state, ev)
	if err != nil {
		// A reducer fault is a bug, not a delivery problem. Surface it as a
		// non-retryable failure so one bad event cannot wedge its partition.
		o.logger.Error("reducer fault",
			"event_id", ev.ID, "event_type", ev.Type, "error", err)
		return failed(err, false)
	}

	if newState.Equal(state) {
		o.dedupe.Mark(ctx, o.name, ev.ID)
		return succeeded(OutcomeUnchanged)
	}

	newState = newState.MarkChanged()

	if err := o.store.Save(ctx, newState, ev); err != nil {
		retryable := store.IsTransient(err) || ctx.Err() != nil
		return failed(fmt.Errorf("save state for event %s: %w", ev.ID, err), retryable)
	}
	if ctx.Err() != nil {
		// The save call returned around a cancellation; without a confirmed
		// acknowledgement it must not be assumed to have happened.
		return failed(fmt.Errorf("save state for event %s: %w", ev.ID, ctx.Err()), true)
	}

	if o.dispatcher != nil {
		if err := o.dispatcher.Dispatch(ctx, newState, ev); err != nil {
			// The state is saved; redelivery re-enters at Received and the
			// ledger idempotency key absorbs the repeat.
			return failed(fmt.Errorf("dispatch for event %s: %w", ev.ID, err), true)
		}
	}

	o.dedupe.Mark(ctx, o.name, ev.ID)
	return succeeded(OutcomeDispatched)
}

// applyReducer guards Apply against panics from unexpected payloads.
func (o *Orchestrator[S]) applyReducer(state S, ev domain.Event) (result S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reducer panic on event %s (%s): %v", ev.ID, ev.Type, r)
		}
	}()
	return o.reducer.Apply(state, ev), nil
}
