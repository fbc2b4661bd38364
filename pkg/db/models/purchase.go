package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

// Purchase is written once per concluded checkout session. StripeSessionID and
// HintKey are each unique when present. A hint-path purchase carries only a
// HintKey until the session's own signal claims it.
type Purchase struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	CollectibleID   uuid.UUID            `gorm:"column:collectible_id;type:uuid;not null"`
	OrderID         *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	Amount          decimal.Decimal      `gorm:"column:amount;type:numeric(18,8);not null"`
	StripeSessionID *string              `gorm:"column:stripe_session_id"`
	HintKey         *string              `gorm:"column:hint_key"`
	Status          enums.PurchaseStatus `gorm:"column:status;type:text;not null"`
	Source          enums.PurchaseSource `gorm:"column:source;type:text;not null"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (Purchase) TableName() string { return "purchases" }
