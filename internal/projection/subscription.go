/**
 * @description
 * Bridges broker deliveries to the router. The returned bool is the ack
 * decision: true acknowledges the message, false asks for redelivery.
 * Malformed payloads and non-retryable failures are acknowledged after
 * logging, since redelivering them can never succeed.
 */

package projection

import (
	"context"
	"log/slog"
	"time"

	"github.com/transactionprocessing/projection-service/internal/domain"
)

const messageTimeout = 15 * time.Second

// Subscription consumes raw event envelopes and drives the router. Per-message
// contexts derive from the base context, so cancelling it at shutdown drains
// in-flight projections as retryable failures (the broker requeues them).
type Subscription struct {
	base   context.Context
	router *Router
	logger *slog.Logger
}

func NewSubscription(ctx context.Context, router *Router, logger *slog.Logger) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscription{base: ctx, router: router, logger: logger.With("component", "subscription")}
}

// HandleMessage processes one delivery and reports whether to acknowledge it.
func (s *Subscription) HandleMessage(body []byte) bool {
	ev, err := domain.ParseEvent(body)
	if err != nil {
		s.logger.Error("dropping malformed event", "error", err)
		return true
	}

	ctx, cancel := context.WithTimeout(s.base, messageTimeout)
	defer cancel()

	result := s.router.Route(ctx, ev)
	if err := result.Err(); err != nil {
		if result.Retryable() {
			s.logger.Warn("projection failed, requeueing event",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"error", err,
			)
			return false
		}
		s.logger.Error("dropping event after non-retryable projection failure",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		return true
	}

	return true
}
