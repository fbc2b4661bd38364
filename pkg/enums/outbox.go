package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregatePurchase    OutboxAggregateType = "purchase"
	AggregateMarketOrder OutboxAggregateType = "market_order"
	AggregateCollectible OutboxAggregateType = "collectible"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateMarketOrder,
	AggregateCollectible,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a marketplace activity relayed to Pub/Sub.
type OutboxEventType string

const (
	EventPurchaseCompleted  OutboxEventType = "purchase_completed"
	EventOrderPlaced        OutboxEventType = "order_placed"
	EventOrderCompleted     OutboxEventType = "order_completed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventCollectibleCreated OutboxEventType = "collectible_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseCompleted,
	EventOrderPlaced,
	EventOrderCompleted,
	EventOrderCancelled,
	EventCollectibleCreated,
}

// IsValid reports whether the value is a known outbox event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
