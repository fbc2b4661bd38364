package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

// MarketOrder is a row in the simulated order book.
type MarketOrder struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	CollectibleID   uuid.UUID         `gorm:"column:collectible_id;type:uuid;not null"`
	OrderType       enums.OrderType   `gorm:"column:order_type;type:text;not null"`
	Side            enums.OrderSide   `gorm:"column:side;type:text;not null"`
	Quantity        int               `gorm:"column:quantity;not null"`
	Price           decimal.Decimal   `gorm:"column:price;type:numeric(18,8);not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'active'"`
	StripeSessionID *string           `gorm:"column:stripe_session_id"`
	ExpiresAt       time.Time         `gorm:"column:expires_at;not null"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (MarketOrder) TableName() string { return "market_orders" }

// EffectiveStatus applies advisory expiry: an active order past its expiry
// reads as expired without the row being rewritten.
func (o MarketOrder) EffectiveStatus(now time.Time) enums.OrderStatus {
	if o.Status == enums.OrderStatusActive && !now.Before(o.ExpiresAt) {
		return enums.OrderStatusExpired
	}
	return o.Status
}
