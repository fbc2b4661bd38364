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

// Repository defines persistence operations for the simulated order book.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.MarketOrder) (*models.MarketOrder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.MarketOrder, error)
	// FindActiveBySession returns the live order that initiated sessionID, if any.
	FindActiveBySession(ctx context.Context, userID uuid.UUID, sessionID string, now time.Time) (*models.MarketOrder, error)
	// FindLatestActiveBuy returns the newest live buy order for the user. When
	// collectibleID is set it is matched exactly.
	FindLatestActiveBuy(ctx context.Context, userID uuid.UUID, collectibleID *uuid.UUID, now time.Time) (*models.MarketOrder, error)
	// CompleteIfActive flips an order to completed only while it is still
	// active. It reports false when another writer got there first.
	CompleteIfActive(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error)
	CancelIfActive(ctx context.Context, orderID, userID uuid.UUID, now time.Time) (bool, error)
	ListByUser(ctx context.Context, query ListQuery) ([]models.MarketOrder, *pagination.Cursor, error)
	ListOpen(ctx context.Context, collectibleID uuid.UUID, now time.Time, limit int) ([]models.MarketOrder, error)
}

// ListQuery filters a user's orders. Status is compared against the effective
// status, so active orders past expiry match "expired".
type ListQuery struct {
	UserID uuid.UUID
	Status *enums.OrderStatus
	Now    time.Time
	Limit  int
	Cursor *pagination.Cursor
}
