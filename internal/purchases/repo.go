package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// SessionConstraint is the unique index that makes a checkout session
// reconcilable at most once.
const SessionConstraint = "ux_purchases_stripe_session_id"

// HintConstraint keys redirect hints that arrived without a session.
const HintConstraint = "ux_purchases_hint_key"

// sqlite reports the violated column rather than the index name.
const (
	sessionColumn = "purchases.stripe_session_id"
	hintColumn    = "purchases.hint_key"
)

// Repository exposes persistence for recorded purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, purchase *models.Purchase) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	FindByHintKey(ctx context.Context, hintKey string) (*models.Purchase, error)
	ClaimSessionless(ctx context.Context, userID, collectibleID uuid.UUID, sessionID string) (*models.Purchase, error)
	ClaimForHint(ctx context.Context, userID, collectibleID uuid.UUID, hintKey string, since time.Time) (*models.Purchase, error)
	AttachOrder(ctx context.Context, purchaseID, orderID uuid.UUID) error
	ListByUser(ctx context.Context, query ListQuery) ([]models.Purchase, *pagination.Cursor, error)
	CompletedTotals(ctx context.Context, userID uuid.UUID) (Totals, error)
}

// Totals summarises a user's completed purchases.
type Totals struct {
	Count int64
	Spent decimal.Decimal
}

type ListQuery struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert writes the purchase row. A second row for the same session id fails
// with a unique violation on SessionConstraint.
func (r *repository) Insert(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByHintKey(ctx context.Context, hintKey string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("hint_key = ?", hintKey).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ClaimSessionless attaches sessionID to the oldest completed purchase for the
// user and collectible that was recorded from a hint and has no session yet.
// It returns gorm.ErrRecordNotFound when nothing was claimed. Setting a session
// that another purchase already owns fails with a unique violation.
func (r *repository) ClaimSessionless(ctx context.Context, userID, collectibleID uuid.UUID, sessionID string) (*models.Purchase, error) {
	var candidate models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND collectible_id = ? AND stripe_session_id IS NULL AND status = ?", userID, collectibleID, enums.PurchaseStatusCompleted).
		Order("created_at ASC, id ASC").
		First(&candidate).Error
	if err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND stripe_session_id IS NULL AND user_id = ? AND collectible_id = ?", candidate.ID, userID, collectibleID).
		Update("stripe_session_id", sessionID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, gorm.ErrRecordNotFound
	}
	candidate.StripeSessionID = &sessionID
	return &candidate, nil
}

// ClaimForHint marks the newest session-backed purchase for the user and
// collectible, recorded at or after since, as the one hintKey refers to.
func (r *repository) ClaimForHint(ctx context.Context, userID, collectibleID uuid.UUID, hintKey string, since time.Time) (*models.Purchase, error) {
	var candidate models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND collectible_id = ? AND hint_key IS NULL AND stripe_session_id IS NOT NULL AND created_at >= ?", userID, collectibleID, since).
		Order("created_at DESC, id DESC").
		First(&candidate).Error
	if err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND hint_key IS NULL", candidate.ID).
		Update("hint_key", hintKey)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, gorm.ErrRecordNotFound
	}
	candidate.HintKey = &hintKey
	return &candidate, nil
}

func (r *repository) AttachOrder(ctx context.Context, purchaseID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", purchaseID).
		Update("order_id", orderID).Error
}

func (r *repository) ListByUser(ctx context.Context, query ListQuery) ([]models.Purchase, *pagination.Cursor, error) {
	limit := query.Limit
	q := r.db.WithContext(ctx).Model(&models.Purchase{}).Where("user_id = ?", query.UserID)
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.Purchase
	if err := q.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(row models.Purchase) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

func (r *repository) CompletedTotals(ctx context.Context, userID uuid.UUID) (Totals, error) {
	var totals Totals
	q := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND status = ?", userID, enums.PurchaseStatusCompleted)
	if err := q.Count(&totals.Count).Error; err != nil {
		return Totals{}, err
	}
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND status = ?", userID, enums.PurchaseStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Row().
		Scan(&totals.Spent)
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// IsDuplicateSession reports whether err came from inserting a second purchase
// for an already reconciled session.
func IsDuplicateSession(err error) bool {
	return db.IsUniqueViolation(err, SessionConstraint) || db.IsUniqueViolation(err, sessionColumn)
}

// IsDuplicateHint reports whether err came from recording the same redirect
// hint twice.
func IsDuplicateHint(err error) bool {
	return db.IsUniqueViolation(err, HintConstraint) || db.IsUniqueViolation(err, hintColumn)
}
