package collectibles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Repository exposes catalog persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, collectible *models.Collectible) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Collectible, error)
	List(ctx context.Context, query listQuery) ([]models.Collectible, *pagination.Cursor, error)
	// Credit records that a user now holds a collectible.
	Credit(ctx context.Context, holding *models.UserCollectible) error
	ListHoldings(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserCollectible, error)
	CountByCreator(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listQuery struct {
	Category string
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, collectible *models.Collectible) error {
	return r.db.WithContext(ctx).Create(collectible).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Collectible, error) {
	var collectible models.Collectible
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&collectible).Error; err != nil {
		return nil, err
	}
	return &collectible, nil
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.Collectible, *pagination.Cursor, error) {
	limit := query.Limit
	q := r.db.WithContext(ctx).Model(&models.Collectible{})
	if query.Category != "" {
		q = q.Where("category = ?", query.Category)
	}
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.Collectible
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(row models.Collectible) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *repository) Credit(ctx context.Context, holding *models.UserCollectible) error {
	return r.db.WithContext(ctx).Create(holding).Error
}

func (r *repository) ListHoldings(ctx context.Context, userID uuid.UUID, limit int) ([]models.UserCollectible, error) {
	var rows []models.UserCollectible
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("purchased_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByCreator(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Collectible{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
