package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	"github.com/angelmondragon/collectibles-backend/pkg/db/dbtest"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
)

type failingTotals struct{}

func (failingTotals) Totals(context.Context) (trades.Totals, error) {
	return trades.Totals{}, errors.New("connection reset")
}

func TestUserStatsAggregatesCreatedAndPurchased(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	user := uuid.New()

	for _, title := range []string{"Art #1", "Art #2"} {
		require.NoError(t, conn.Create(&models.Collectible{ID: models.NewID(), Title: title, Price: decimal.NewFromInt(1), UserID: &user}).Error)
	}
	require.NoError(t, conn.Create(&models.Collectible{ID: models.NewID(), Title: "Someone else's", Price: decimal.NewFromInt(1)}).Error)

	purchaseRepo := purchases.NewRepository(conn)
	for _, amount := range []string{"0.05", "1.20"} {
		require.NoError(t, purchaseRepo.Insert(ctx, &models.Purchase{
			ID: models.NewID(), UserID: user, CollectibleID: uuid.New(), Amount: decimal.RequireFromString(amount),
			Status: enums.PurchaseStatusCompleted, Source: enums.PurchaseSourceWebhook,
		}))
	}

	svc, err := NewService(ServiceParams{
		Trades:       trades.NewRepository(conn),
		Purchases:    purchaseRepo,
		Collectibles: collectibles.NewRepository(conn),
	})
	require.NoError(t, err)

	out, err := svc.User(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, out.CollectiblesCreated)
	assert.EqualValues(t, 2, out.Purchases)
	assert.True(t, out.TotalSpent.Equal(decimal.RequireFromString("1.25")), out.TotalSpent.String())

	_, err = svc.User(ctx, uuid.Nil)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestMarketStats(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	tradeRepo := trades.NewRepository(conn)
	buyer := uuid.New()
	for _, tc := range []struct {
		price  string
		status enums.TradeStatus
	}{
		{"10", enums.TradeStatusCompleted},
		{"2.5", enums.TradeStatusCompleted},
		{"4", enums.TradeStatusPending},
		{"4", enums.TradeStatusPending},
	} {
		require.NoError(t, tradeRepo.Create(ctx, &models.Trade{
			ID: models.NewID(), BuyerID: &buyer, CollectibleID: uuid.New(), Price: decimal.RequireFromString(tc.price),
			TradeType: enums.TradeTypeBuy, Status: tc.status,
		}))
	}

	svc, err := NewService(ServiceParams{
		Trades:       tradeRepo,
		Purchases:    purchases.NewRepository(conn),
		Collectibles: collectibles.NewRepository(conn),
	})
	require.NoError(t, err)

	out, err := svc.Market(ctx)
	require.NoError(t, err)
	assert.True(t, out.TotalVolume.Equal(decimal.RequireFromString("12.5")), out.TotalVolume.String())
	assert.EqualValues(t, 2, out.ActiveTrades)
}

func TestMarketStatsStoreFailure(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Trades:       failingTotals{},
		Purchases:    purchases.NewRepository(conn),
		Collectibles: collectibles.NewRepository(conn),
	})
	require.NoError(t, err)

	_, err = svc.Market(context.Background())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
