package purchases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Service is the read side of the purchase history.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// GetBySession returns the reconciled purchase for a checkout session owned
	// by userID. Sessions that are unreconciled or belong to someone else are
	// reported as not found.
	GetBySession(ctx context.Context, userID uuid.UUID, sessionID string) (*PurchaseView, error)
}

type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

type ListResult struct {
	Items  []PurchaseView `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

type PurchaseView struct {
	ID              uuid.UUID            `json:"id"`
	CollectibleID   uuid.UUID            `json:"collectible_id"`
	OrderID         *uuid.UUID           `json:"order_id,omitempty"`
	Amount          decimal.Decimal      `json:"amount"`
	StripeSessionID *string              `json:"stripe_session_id,omitempty"`
	Status          enums.PurchaseStatus `json:"status"`
	Source          enums.PurchaseSource `json:"source"`
	CreatedAt       time.Time            `json:"created_at"`
}

type service struct {
	repo Repository
}

// NewService wires the purchase history reader.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByUser(ctx, ListQuery{UserID: params.UserID, Limit: params.Limit, Cursor: cursor})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}

	items := make([]PurchaseView, 0, len(rows))
	for i := range rows {
		items = append(items, ToView(&rows[i]))
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) GetBySession(ctx context.Context, userID uuid.UUID, sessionID string) (*PurchaseView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	row, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no purchase recorded for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if row.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no purchase recorded for session")
	}
	view := ToView(row)
	return &view, nil
}

// ToView maps a stored purchase to its public shape.
func ToView(row *models.Purchase) PurchaseView {
	return PurchaseView{
		ID:              row.ID,
		CollectibleID:   row.CollectibleID,
		OrderID:         row.OrderID,
		Amount:          row.Amount,
		StripeSessionID: row.StripeSessionID,
		Status:          row.Status,
		Source:          row.Source,
		CreatedAt:       row.CreatedAt,
	}
}
