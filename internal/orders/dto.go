package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

// CreateOrderInput is a user's order submission. Side is required for limit
// and market orders and must agree with the type for buy and sell orders.
type CreateOrderInput struct {
	CollectibleID uuid.UUID
	OrderType     enums.OrderType
	Side          *enums.OrderSide
	Quantity      int
	// Price is per unit in display units. Market orders without a price use the
	// collectible's listed price.
	Price      decimal.Decimal
	SuccessURL string
	CancelURL  string
	Origin     string
}

// CreateOrderResult carries the stored order plus the checkout handle for
// buy-side orders.
type CreateOrderResult struct {
	Order       OrderView `json:"order"`
	SessionID   string    `json:"sessionId,omitempty"`
	CheckoutURL string    `json:"checkoutUrl,omitempty"`
}

type ListParams struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// OrderBook is the open side of the simulated book for one collectible.
// Bids are sorted best (highest) first, asks lowest first.
type OrderBook struct {
	CollectibleID uuid.UUID   `json:"collectible_id"`
	Bids          []OrderView `json:"bids"`
	Asks          []OrderView `json:"asks"`
}

type OrderView struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	CollectibleID   uuid.UUID         `json:"collectible_id"`
	OrderType       enums.OrderType   `json:"order_type"`
	Side            enums.OrderSide   `json:"side"`
	Quantity        int               `json:"quantity"`
	Price           decimal.Decimal   `json:"price"`
	Status          enums.OrderStatus `json:"status"`
	EffectiveStatus enums.OrderStatus `json:"effective_status"`
	StripeSessionID *string           `json:"stripe_session_id,omitempty"`
	ExpiresAt       time.Time         `json:"expires_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ToView maps a stored order to its public shape, applying advisory expiry at now.
func ToView(order *models.MarketOrder, now time.Time) OrderView {
	return OrderView{
		ID:              order.ID,
		UserID:          order.UserID,
		CollectibleID:   order.CollectibleID,
		OrderType:       order.OrderType,
		Side:            order.Side,
		Quantity:        order.Quantity,
		Price:           order.Price,
		Status:          order.Status,
		EffectiveStatus: order.EffectiveStatus(now),
		StripeSessionID: order.StripeSessionID,
		ExpiresAt:       order.ExpiresAt,
		CompletedAt:     order.CompletedAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
}
