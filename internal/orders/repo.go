package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.MarketOrder) (*models.MarketOrder, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MarketOrder, error) {
	var order models.MarketOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) live(ctx context.Context, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.MarketOrder{}).
		Where("status = ?", enums.OrderStatusActive).
		Where("expires_at > ?", now)
}

func (r *repository) FindActiveBySession(ctx context.Context, userID uuid.UUID, sessionID string, now time.Time) (*models.MarketOrder, error) {
	var order models.MarketOrder
	err := r.live(ctx, now).
		Where("user_id = ? AND stripe_session_id = ?", userID, sessionID).
		Order("created_at DESC, id DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLatestActiveBuy(ctx context.Context, userID uuid.UUID, collectibleID *uuid.UUID, now time.Time) (*models.MarketOrder, error) {
	q := r.live(ctx, now).Where("user_id = ? AND side = ?", userID, enums.OrderSideBuy)
	if collectibleID != nil {
		q = q.Where("collectible_id = ?", *collectibleID)
	}
	var order models.MarketOrder
	if err := q.Order("created_at DESC, id DESC").First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CompleteIfActive(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MarketOrder{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusActive).
		Updates(map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CancelIfActive(ctx context.Context, orderID, userID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MarketOrder{}).
		Where("id = ? AND user_id = ? AND status = ? AND expires_at > ?", orderID, userID, enums.OrderStatusActive, now).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, query ListQuery) ([]models.MarketOrder, *pagination.Cursor, error) {
	limit := query.Limit
	q := r.db.WithContext(ctx).Model(&models.MarketOrder{}).Where("user_id = ?", query.UserID)
	if query.Status != nil {
		switch *query.Status {
		case enums.OrderStatusActive:
			q = q.Where("status = ? AND expires_at > ?", enums.OrderStatusActive, query.Now)
		case enums.OrderStatusExpired:
			q = q.Where("(status = ? OR (status = ? AND expires_at <= ?))", enums.OrderStatusExpired, enums.OrderStatusActive, query.Now)
		default:
			q = q.Where("status = ?", *query.Status)
		}
	}
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.MarketOrder
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(row models.MarketOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *repository) ListOpen(ctx context.Context, collectibleID uuid.UUID, now time.Time, limit int) ([]models.MarketOrder, error) {
	var rows []models.MarketOrder
	err := r.live(ctx, now).
		Where("collectible_id = ?", collectibleID).
		Order("created_at ASC, id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
