/**
 * @description
 * Best-effort duplicate suppression in front of the orchestrators, backed by
 * Redis. A marker is written only after an event reaches a successful
 * terminal outcome; a cache hit lets a redelivered event skip its load/save
 * cycle entirely. Strictly an I/O saver: correctness against duplicates is
 * owed to the store's per-event applied marker and the ledger's uniqueness
 * key, so every cache failure degrades to "not seen".
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client.
 */

package projection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventDedupe marks processed (projection, event) pairs in Redis. A nil
// *EventDedupe is valid and disables the cache.
type EventDedupe struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewEventDedupe builds the cache. ttl bounds how long markers outlive the
// event-log redelivery horizon.
func NewEventDedupe(client redis.UniversalClient, prefix string, ttl time.Duration) *EventDedupe {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "projection:seen"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventDedupe{client: client, prefix: trimmed, ttl: ttl}
}

// Seen reports whether the event was already fully processed by the named
// projection. Errors and timeouts report false.
func (d *EventDedupe) Seen(ctx context.Context, projection string, eventID uuid.UUID) bool {
	if d == nil || d.client == nil {
		return false
	}
	n, err := d.client.Exists(ctx, d.key(projection, eventID)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// Mark records a successful terminal outcome. Failures are ignored; the next
// delivery simply pays the idempotent replay cost.
func (d *EventDedupe) Mark(ctx context.Context, projection string, eventID uuid.UUID) {
	if d == nil || d.client == nil {
		return
	}
	_ = d.client.SetNX(ctx, d.key(projection, eventID), 1, d.ttl).Err()
}

func (d *EventDedupe) key(projection string, eventID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", d.prefix, projection, eventID)
}
