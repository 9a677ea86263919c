package notification

import (
	"context"

	"nidhi/pkg/domain"
)

// Store persists derived notification events.
type Store interface {
	Append(ctx context.Context, ev *Event) error
	List(ctx context.Context, role domain.Role, scope string, onlyUnacknowledged bool) ([]*Event, error)
	Acknowledge(ctx context.Context, id domain.EventID) (*Event, error)
}

// MarkerStore is the durable idempotency record: SetIfAbsent returns true
// exactly once per (sourceID, audienceKey) pair, so re-derived events stay
// suppressed across restarts.
type MarkerStore interface {
	SetIfAbsent(ctx context.Context, sourceID, audienceKey string) (bool, error)
}
