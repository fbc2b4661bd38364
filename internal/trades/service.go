// Package trades records buyer/seller pairings and serves the active trades
// view. Orders open pending trades; reconciliation and cancellation settle
// them.
package trades

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

// Service is the read side of trades.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type ListParams struct {
	UserID        uuid.UUID
	CollectibleID *uuid.UUID
	Status        *enums.TradeStatus
	Limit         int
	Cursor        string
}

type ListResult struct {
	Items  []TradeView `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}

type TradeView struct {
	ID            uuid.UUID         `json:"id"`
	BuyerID       *uuid.UUID        `json:"buyer_id,omitempty"`
	SellerID      *uuid.UUID        `json:"seller_id,omitempty"`
	CollectibleID uuid.UUID         `json:"collectible_id"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	Price         decimal.Decimal   `json:"price"`
	TradeType     enums.TradeType   `json:"trade_type"`
	Status        enums.TradeStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires the trades reader.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("trades repository required")
	}
	return &service{repo: repo}, nil
}

// List returns trades where the user is the buyer or the seller, newest first.
func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").WithDetails(map[string]any{"field": "status"})
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByParticipant(ctx, ListQuery{
		UserID:        params.UserID,
		CollectibleID: params.CollectibleID,
		Status:        params.Status,
		Limit:         params.Limit,
		Cursor:        cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list trades")
	}

	result := &ListResult{Items: make([]TradeView, 0, len(rows))}
	for i := range rows {
		row := rows[i]
		result.Items = append(result.Items, TradeView{
			ID:            row.ID,
			BuyerID:       row.BuyerID,
			SellerID:      row.SellerID,
			CollectibleID: row.CollectibleID,
			OrderID:       row.OrderID,
			Price:         row.Price,
			TradeType:     row.TradeType,
			Status:        row.Status,
			CreatedAt:     row.CreatedAt,
			CompletedAt:   row.CompletedAt,
		})
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
