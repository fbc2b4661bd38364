package collectibles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/internal/activities"
	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Service is the catalog surface used by controllers and the order book.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*CollectibleView, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*CollectibleView, error)
	ListOwned(ctx context.Context, userID uuid.UUID) ([]HoldingView, error)
}

type ListParams struct {
	Category string
	Limit    int
	Cursor   string
}

type ListResult struct {
	Items  []CollectibleView `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

type CreateInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Category    string
	Rarity      string
	ImageURL    *string
}

// CollectibleView is the public catalog shape. Price is in display units.
type CollectibleView struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Rarity      string          `json:"rarity"`
	ImageURL    *string         `json:"image_url,omitempty"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// HoldingView is one collectible credited to a user by a reconciled purchase.
type HoldingView struct {
	ID            uuid.UUID       `json:"id"`
	CollectibleID uuid.UUID       `json:"collectible_id"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}

type ServiceParams struct {
	Repo       Repository
	Tx         db.TxRunner
	Outbox     outbox.Emitter
	Activities activities.Recorder
}

type service struct {
	repo       Repository
	tx         db.TxRunner
	outbox     outbox.Emitter
	activities activities.Recorder
}

// NewService builds the catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("collectibles repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Activities == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		activities: params.Activities,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, listQuery{
		Category: strings.TrimSpace(params.Category),
		Limit:    params.Limit,
		Cursor:   cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list collectibles")
	}

	items := make([]CollectibleView, 0, len(rows))
	for i := range rows {
		items = append(items, toView(&rows[i]))
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CollectibleView, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collectible not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collectible")
	}
	view := toView(row)
	return &view, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*CollectibleView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required").WithDetails(map[string]any{"field": "title"})
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero").WithDetails(map[string]any{"field": "price"})
	}

	owner := userID
	row := &models.Collectible{
		ID:          models.NewID(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Category:    strings.TrimSpace(input.Category),
		Rarity:      strings.TrimSpace(input.Rarity),
		ImageURL:    input.ImageURL,
		UserID:      &owner,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, tx, activities.Entry{
			UserID:      userID,
			Type:        enums.ActivityCollectibleMade,
			Description: fmt.Sprintf("Created collectible %s", title),
			Metadata:    map[string]any{"collectible_id": row.ID.String()},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCollectibleCreated,
			AggregateType: enums.AggregateCollectible,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.CollectibleCreatedEvent{
				CollectibleID: row.ID,
				UserID:        userID,
				Title:         title,
				Price:         input.Price,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create collectible")
	}
	view := toView(row)
	return &view, nil
}

func (s *service) ListOwned(ctx context.Context, userID uuid.UUID) ([]HoldingView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	rows, err := s.repo.ListHoldings(ctx, userID, pagination.MaxLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list holdings")
	}
	out := make([]HoldingView, 0, len(rows))
	for _, row := range rows {
		out = append(out, HoldingView{
			ID:            row.ID,
			CollectibleID: row.CollectibleID,
			PurchasePrice: row.PurchasePrice,
			PurchasedAt:   row.PurchasedAt,
		})
	}
	return out, nil
}

func toView(row *models.Collectible) CollectibleView {
	return CollectibleView{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Price:       row.Price,
		Category:    row.Category,
		Rarity:      row.Rarity,
		ImageURL:    row.ImageURL,
		UserID:      row.UserID,
		CreatedAt:   row.CreatedAt,
	}
}
