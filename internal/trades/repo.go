package trades

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Repository exposes persistence for trades.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, trade *models.Trade) error
	// Settle moves the pending trade opened by orderID to status. It reports
	// false when no pending trade exists for the order.
	Settle(ctx context.Context, orderID uuid.UUID, status enums.TradeStatus, at time.Time) (bool, error)
	ListByParticipant(ctx context.Context, query ListQuery) ([]models.Trade, *pagination.Cursor, error)
	Totals(ctx context.Context) (Totals, error)
}

type ListQuery struct {
	UserID        uuid.UUID
	CollectibleID *uuid.UUID
	Status        *enums.TradeStatus
	Limit         int
	Cursor        *pagination.Cursor
}

// Totals summarises the whole market.
type Totals struct {
	CompletedVolume decimal.Decimal
	PendingCount    int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a trades repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, trade *models.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *repository) Settle(ctx context.Context, orderID uuid.UUID, status enums.TradeStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": status}
	if status == enums.TradeStatusCompleted {
		updates["completed_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("order_id = ? AND status = ?", orderID, enums.TradeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByParticipant(ctx context.Context, query ListQuery) ([]models.Trade, *pagination.Cursor, error) {
	limit := query.Limit
	q := r.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("(buyer_id = ? OR seller_id = ?)", query.UserID, query.UserID)
	if query.CollectibleID != nil {
		q = q.Where("collectible_id = ?", *query.CollectibleID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.Trade
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(row models.Trade) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *repository) Totals(ctx context.Context) (Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("status = ?", enums.TradeStatusCompleted).
		Select("COALESCE(SUM(price), 0)").
		Row().
		Scan(&totals.CompletedVolume)
	if err != nil {
		return Totals{}, err
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Trade{}).
		Where("status = ?", enums.TradeStatusPending).
		Count(&totals.PendingCount).Error; err != nil {
		return Totals{}, err
	}
	return totals, nil
}
