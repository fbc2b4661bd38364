package activities

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Repository exposes persistence helpers for the user activity feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, activity *models.UserActivity) error
	ListByUser(ctx context.Context, query listQuery) ([]models.UserActivity, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listQuery struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, activity *models.UserActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *repository) ListByUser(ctx context.Context, query listQuery) ([]models.UserActivity, *pagination.Cursor, error) {
	limit := query.Limit
	q := r.db.WithContext(ctx).Model(&models.UserActivity{}).Where("user_id = ?", query.UserID)
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.UserActivity
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(row models.UserActivity) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
