package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserCollectible credits a collectible to a user's holdings.
type UserCollectible struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	CollectibleID uuid.UUID       `gorm:"column:collectible_id;type:uuid;not null"`
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:numeric(18,8);not null"`
	PurchasedAt   time.Time       `gorm:"column:purchased_at;not null"`
}

func (UserCollectible) TableName() string { return "user_collectibles" }
