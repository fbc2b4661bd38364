package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

// PurchaseCompletedEvent is emitted once per reconciled payment.
type PurchaseCompletedEvent struct {
	PurchaseID      uuid.UUID            `json:"purchase_id"`
	UserID          uuid.UUID            `json:"user_id"`
	CollectibleID   uuid.UUID            `json:"collectible_id"`
	OrderID         *uuid.UUID           `json:"order_id,omitempty"`
	Amount          decimal.Decimal      `json:"amount"`
	StripeSessionID *string              `json:"stripe_session_id,omitempty"`
	Source          enums.PurchaseSource `json:"source"`
	// OrderMatched is false when no active buy order existed and one was written as completed.
	OrderMatched bool `json:"order_matched"`
}

// OrderPlacedEvent is emitted when a user submits an order to the book.
type OrderPlacedEvent struct {
	OrderID         uuid.UUID       `json:"order_id"`
	UserID          uuid.UUID       `json:"user_id"`
	CollectibleID   uuid.UUID       `json:"collectible_id"`
	OrderType       enums.OrderType `json:"order_type"`
	Side            enums.OrderSide `json:"side"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	StripeSessionID *string         `json:"stripe_session_id,omitempty"`
}

// OrderStatusChangedEvent covers completion and cancellation.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}

// CollectibleCreatedEvent is emitted when a user lists a new collectible.
type CollectibleCreatedEvent struct {
	CollectibleID uuid.UUID       `json:"collectible_id"`
	UserID        uuid.UUID       `json:"user_id"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
}
