/**
 * @description
 * The estate reducer and the schema provisioning handler. Estate creation is
 * the one event type that fans out to two registered handlers: the normal
 * estate projection, and a side-effect handler that provisions the
 * per-tenant reporting schema before reads can land on it.
 */

package projection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/store"
)

// EstateReducer folds estate lifecycle events into EstateState.
type EstateReducer struct{}

// NewEstateReducer returns the estate reducer.
func NewEstateReducer() *EstateReducer { return &EstateReducer{} }

func (r *EstateReducer) Relevant(ev domain.Event) bool {
	_, ok := ev.Body.(domain.EstateCreated)
	return ok
}

func (r *EstateReducer) Apply(state domain.EstateState, ev domain.Event) domain.EstateState {
	body, ok := ev.Body.(domain.EstateCreated)
	if !ok {
		return state
	}
	next := state
	next.EstateID = body.EstateID
	next.EstateName = body.EstateName
	next.CreatedAt = laterOf(next.CreatedAt, ev.OccurredAt)
	return next
}

// EstateProvisioningHandler runs the one-time schema provisioning for a new
// tenant. Registered alongside the estate projection so a provisioning
// failure cannot suppress the projection attempt (and vice versa).
type EstateProvisioningHandler struct {
	provisioner store.EstateProvisioner
	logger      *slog.Logger
}

// NewEstateProvisioningHandler wires the handler.
func NewEstateProvisioningHandler(provisioner store.EstateProvisioner, logger *slog.Logger) *EstateProvisioningHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EstateProvisioningHandler{provisioner: provisioner, logger: logger.With("projection", "estate_provisioner")}
}

func (h *EstateProvisioningHandler) Name() string { return "estate_provisioner" }

func (h *EstateProvisioningHandler) Handle(ctx context.Context, ev domain.Event) Result {
	body, ok := ev.Body.(domain.EstateCreated)
	if !ok {
		return succeeded(OutcomeIrrelevant)
	}

	if err := h.provisioner.ProvisionEstateSchema(ctx, body.EstateID); err != nil {
		return failed(fmt.Errorf("provision estate %s: %w", body.EstateID, err), store.IsTransient(err))
	}

	h.logger.Info("estate schema provisioned", "estate_id", body.EstateID, "event_id", ev.ID)
	return succeeded(OutcomeDispatched)
}
