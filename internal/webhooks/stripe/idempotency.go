package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const guardProvider = "stripe"

type eventStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// EventGuard remembers handled event ids so redeliveries short-circuit before
// touching the database. It is a fast path only; reconciliation stays
// idempotent without it. A nil guard claims every event.
type EventGuard struct {
	store eventStore
	ttl   time.Duration
}

func NewEventGuard(store eventStore, ttl time.Duration) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &EventGuard{store: store, ttl: ttl}, nil
}

// Claim reports true when this is the first delivery of eventID.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if g == nil {
		return true, nil
	}
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(guardProvider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return set, nil
}

// Release forgets eventID so the processor's redelivery is handled again.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	if g == nil || eventID == "" {
		return nil
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(guardProvider, eventID))
}
