// Package stats aggregates market-wide and per-user figures for dashboards.
package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
)

type tradeTotaler interface {
	Totals(ctx context.Context) (trades.Totals, error)
}

type purchaseTotaler interface {
	CompletedTotals(ctx context.Context, userID uuid.UUID) (purchases.Totals, error)
}

type creatorCounter interface {
	CountByCreator(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Service serves the dashboard figures.
type Service interface {
	Market(ctx context.Context) (*MarketStats, error)
	User(ctx context.Context, userID uuid.UUID) (*UserStats, error)
}

type MarketStats struct {
	TotalVolume  decimal.Decimal `json:"total_volume"`
	ActiveTrades int64           `json:"active_trades"`
}

type UserStats struct {
	CollectiblesCreated int64           `json:"collectibles_created"`
	Purchases           int64           `json:"purchases"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
}

type ServiceParams struct {
	Trades       tradeTotaler
	Purchases    purchaseTotaler
	Collectibles creatorCounter
}

type service struct {
	trades       tradeTotaler
	purchases    purchaseTotaler
	collectibles creatorCounter
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Trades == nil:
		return nil, fmt.Errorf("trades repository required")
	case params.Purchases == nil:
		return nil, fmt.Errorf("purchases repository required")
	case params.Collectibles == nil:
		return nil, fmt.Errorf("collectibles repository required")
	}
	return &service{
		trades:       params.Trades,
		purchases:    params.Purchases,
		collectibles: params.Collectibles,
	}, nil
}

// Market reports the summed price of completed trades and the number of
// pending ones.
func (s *service) Market(ctx context.Context) (*MarketStats, error) {
	totals, err := s.trades.Totals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load market totals")
	}
	return &MarketStats{TotalVolume: totals.CompletedVolume, ActiveTrades: totals.PendingCount}, nil
}

// User reports how many collectibles the user created and what their
// completed purchases add up to.
func (s *service) User(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	created, err := s.collectibles.CountByCreator(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count created collectibles")
	}
	totals, err := s.purchases.CompletedTotals(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase totals")
	}
	return &UserStats{
		CollectiblesCreated: created,
		Purchases:           totals.Count,
		TotalSpent:          totals.Spent,
	}, nil
}
