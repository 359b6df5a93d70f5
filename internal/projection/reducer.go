/**
 * @description
 * Core contracts of the projection engine. A projection is the composition of
 * a Reducer (pure state derivation), a StateStore (versioned persistence) and
 * an optional Dispatcher (derived ledger fan-out); the Orchestrator ties them
 * together per event, and Handlers are what the Router fans events out to.
 *
 * @notes
 * - Reducers are pure: no I/O, no mutation of the input state. Apply returns
 *   a fresh value so the orchestrator can compare old and new by value and
 *   skip persistence entirely when nothing changed.
 */

package projection

import (
	"context"

	"github.com/transactionprocessing/projection-service/internal/domain"
)

// State is the constraint every read-model state type satisfies: value
// comparison for change detection and a copy-and-patch marker for the
// changes-applied flag.
type State[S any] interface {
	Equal(S) bool
	MarkChanged() S
}

// Reducer derives read-model state from domain events.
type Reducer[S State[S]] interface {
	// Relevant reports whether the event can affect this read model at all.
	// Irrelevant events must not cost a load/save cycle.
	Relevant(ev domain.Event) bool

	// Apply folds one event into the state and returns the new state. Pure;
	// an event the reducer does not recognize returns the input unchanged.
	Apply(state S, ev domain.Event) S
}

// StateStore loads and persists one read-model type. Save must treat an
// event it has already applied, and version conflicts with concurrent
// writers, as success without re-applying the change.
type StateStore[S State[S]] interface {
	Load(ctx context.Context, ev domain.Event) (S, error)
	Save(ctx context.Context, state S, ev domain.Event) error
}

// Dispatcher derives zero-or-one ledger rows from a freshly-saved state and
// persists them idempotently.
type Dispatcher[S State[S]] interface {
	Dispatch(ctx context.Context, newState S, ev domain.Event) error
}

// Handler is the uniform shape the router dispatches to. Orchestrators of
// every state type implement it, as do side-effect handlers such as the
// estate schema provisioner.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev domain.Event) Result
}

// Outcome is the terminal state of one event's trip through one projection.
type Outcome string

const (
	// OutcomeIrrelevant: the reducer declared the event irrelevant; no I/O.
	OutcomeIrrelevant Outcome = "irrelevant"
	// OutcomeDuplicate: the best-effort dedupe cache had already seen the
	// event for this projection; no I/O beyond the cache lookup.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnchanged: reduction produced a value-identical state; nothing
	// persisted beyond the load.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeDispatched: state saved and ledger dispatch completed.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeFailed: a reported failure; Retryable says whether redelivery
	// can help.
	OutcomeFailed Outcome = "failed"
)

// Result is the explicit result value every handler returns. Failures are
// never raised across component boundaries; the subscription driver decides
// on redelivery from Retryable.
type Result struct {
	Outcome   Outcome
	Err       error
	Retryable bool
}

// Success reports whether the event reached a successful terminal state.
func (r Result) Success() bool {
	return r.Outcome != OutcomeFailed
}

func succeeded(outcome Outcome) Result {
	return Result{Outcome: outcome}
}

func failed(err error, retryable bool) Result {
	return Result{Outcome: OutcomeFailed, Err: err, Retryable: retryable}
}
