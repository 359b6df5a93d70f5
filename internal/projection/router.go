/**
 * @description
 * The event router: an explicit registration table from event-type tag to
 * the handlers responsible for it, built once at startup (no runtime type
 * discovery). One event type may feed several projections; all of them are
 * attempted independently and the aggregate result reports failure if any
 * branch failed, retryable if any failed branch is retryable.
 */

package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/transactionprocessing/projection-service/internal/domain"
)

// ErrUnroutedEvent reports an event type with no registered handler: a
// configuration error, not something redelivery can fix.
var ErrUnroutedEvent = errors.New("no projection registered for event type")

// ErrUnknownHandler reports a route binding naming an unregistered handler.
var ErrUnknownHandler = errors.New("unknown handler in route binding")

// Router fans events out to registered handlers by event-type tag.
type Router struct {
	handlers map[string]Handler
	routes   map[string][]Handler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]Handler),
		routes:   make(map[string][]Handler),
	}
}

// Register makes a handler available for route bindings.
func (r *Router) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Bind routes an event type to one or more registered handlers, in order,
// replacing any earlier binding for that type. Replacement keeps a configured
// overlay that names an already-bound handler from registering it twice,
// which would apply one delivery twice. Binding is a startup-time operation;
// an unknown handler name is an error the process should fail on.
func (r *Router) Bind(eventType string, handlerNames ...string) error {
	handlers := make([]Handler, 0, len(handlerNames))
	seen := make(map[string]bool, len(handlerNames))
	for _, name := range handlerNames {
		h, ok := r.handlers[name]
		if !ok {
			return fmt.Errorf("%w: %q for event type %q", ErrUnknownHandler, name, eventType)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		handlers = append(handlers, h)
	}
	r.routes[eventType] = handlers
	return nil
}

// BindAll applies a routing table, e.g. DefaultRoutes overlaid with
// configuration.
func (r *Router) BindAll(routes map[string][]string) error {
	for eventType, names := range routes {
		if err := r.Bind(eventType, names...); err != nil {
			return err
		}
	}
	return nil
}

// RouteResult aggregates the per-handler outcomes of one event.
type RouteResult struct {
	Branches map[string]Result
}

// Err joins the failures of all branches; nil when every branch succeeded.
func (r RouteResult) Err() error {
	var errs []error
	for name, res := range r.Branches {
		if !res.Success() {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Retryable reports whether redelivery could fix at least one failed branch.
// Successful branches re-run idempotently, so redelivery is safe whenever it
// is useful.
func (r RouteResult) Retryable() bool {
	for _, res := range r.Branches {
		if !res.Success() && res.Retryable {
			return true
		}
	}
	return false
}

// Route resolves the event's type tag (case-sensitive exact match) and runs
// every bound handler. A failure in one branch never prevents the others
// from being attempted.
func (r *Router) Route(ctx context.Context, ev domain.Event) RouteResult {
	handlers, ok := r.routes[ev.Type]
	if !ok || len(handlers) == 0 {
		return RouteResult{Branches: map[string]Result{
			"router": failed(fmt.Errorf("%w: %q", ErrUnroutedEvent, ev.Type), false),
		}}
	}

	branches := make(map[string]Result, len(handlers))
	for _, h := range handlers {
		branches[h.Name()] = h.Handle(ctx, ev)
	}
	return RouteResult{Branches: branches}
}

// DefaultRoutes is the built-in registration table, the fallback the
// configured routing overlay extends or overrides.
func DefaultRoutes() map[string][]string {
	return map[string][]string{
		domain.EventTypeEstateCreated: {"estate_provisioner", "estate"},

		domain.EventTypeMerchantCreated:             {"merchant_balance"},
		domain.EventTypeManualDepositMade:           {"merchant_balance"},
		domain.EventTypeAutomaticDepositMade:        {"merchant_balance"},
		domain.EventTypeWithdrawalMade:              {"merchant_balance"},
		domain.EventTypeTransactionHasStarted:       {"merchant_balance"},
		domain.EventTypeTransactionHasBeenCompleted: {"merchant_balance"},
		domain.EventTypeMerchantFeeSettled:          {"merchant_balance"},

		domain.EventTypeVoucherGenerated:     {"voucher"},
		domain.EventTypeVoucherIssued:        {"voucher"},
		domain.EventTypeVoucherFullyRedeemed: {"voucher"},

		domain.EventTypeSettlementCreated:            {"settlement"},
		domain.EventTypeMerchantFeeAddedToSettlement: {"settlement"},
		domain.EventTypeSettlementProcessingStarted:  {"settlement"},
		domain.EventTypeSettlementCompleted:          {"settlement"},
	}
}
