package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

// Trade pairs a buyer with a seller for one collectible. A trade opened by an
// order carries its OrderID and settles with it; a counterparty that is not
// known yet is left NULL.
type Trade struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID       *uuid.UUID        `gorm:"column:buyer_id;type:uuid"`
	SellerID      *uuid.UUID        `gorm:"column:seller_id;type:uuid"`
	CollectibleID uuid.UUID         `gorm:"column:collectible_id;type:uuid;not null"`
	OrderID       *uuid.UUID        `gorm:"column:order_id;type:uuid"`
	Price         decimal.Decimal   `gorm:"column:price;type:numeric(18,8);not null"`
	TradeType     enums.TradeType   `gorm:"column:trade_type;type:text;not null"`
	Status        enums.TradeStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	CompletedAt   *time.Time        `gorm:"column:completed_at"`
}

func (Trade) TableName() string { return "trades" }
