package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Collectible is a catalog entry. Price is in display units; it is labeled ETH
// in the UI but settles through card checkout.
type Collectible struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title       string          `gorm:"column:title;not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(18,8);not null"`
	Category    string          `gorm:"column:category;not null;default:''"`
	Rarity      string          `gorm:"column:rarity;not null;default:''"`
	ImageURL    *string         `gorm:"column:image_url"`
	UserID      *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Collectible) TableName() string { return "collectibles" }
