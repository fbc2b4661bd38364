package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/dbtest"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
)

func newPurchase(userID uuid.UUID, sessionID *string) *models.Purchase {
	return &models.Purchase{
		ID:              uuid.New(),
		UserID:          userID,
		CollectibleID:   uuid.New(),
		Amount:          decimal.RequireFromString("0.05"),
		StripeSessionID: sessionID,
		Status:          enums.PurchaseStatusCompleted,
		Source:          enums.PurchaseSourceWebhook,
	}
}

func TestInsertRejectsDuplicateSession(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	session := "cs_test_dup"

	require.NoError(t, repo.Insert(ctx, newPurchase(uuid.New(), &session)))
	err := repo.Insert(ctx, newPurchase(uuid.New(), &session))
	require.Error(t, err)
	assert.True(t, IsDuplicateSession(err))

	// The session index ignores rows without a session id; the hint index
	// covers those.
	require.NoError(t, repo.Insert(ctx, newPurchase(uuid.New(), nil)))
	require.NoError(t, repo.Insert(ctx, newPurchase(uuid.New(), nil)))

	key := "hk_dup"
	first := newPurchase(uuid.New(), nil)
	first.HintKey = &key
	require.NoError(t, repo.Insert(ctx, first))
	second := newPurchase(uuid.New(), nil)
	second.HintKey = &key
	err = repo.Insert(ctx, second)
	require.Error(t, err)
	assert.True(t, IsDuplicateHint(err))
	assert.False(t, IsDuplicateSession(err))
}

func TestClaimSessionlessTakesOldestHintPurchaseOnce(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	older := newPurchase(userID, nil)
	older.CreatedAt = base
	require.NoError(t, repo.Insert(ctx, older))
	newer := newPurchase(userID, nil)
	newer.CollectibleID = older.CollectibleID
	newer.CreatedAt = base.Add(time.Minute)
	require.NoError(t, repo.Insert(ctx, newer))

	claimed, err := repo.ClaimSessionless(ctx, userID, older.CollectibleID, "cs_live_a")
	require.NoError(t, err)
	assert.Equal(t, older.ID, claimed.ID)

	claimed, err = repo.ClaimSessionless(ctx, userID, older.CollectibleID, "cs_live_b")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, claimed.ID)

	_, err = repo.ClaimSessionless(ctx, userID, older.CollectibleID, "cs_live_c")
	assert.True(t, db.IsNotFound(err))

	_, err = repo.ClaimSessionless(ctx, uuid.New(), older.CollectibleID, "cs_live_d")
	assert.True(t, db.IsNotFound(err), "other users' purchases are never claimed")
}

func TestClaimSessionlessRejectsSessionAlreadyRecorded(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	session := "cs_live_taken"

	recorded := newPurchase(userID, &session)
	require.NoError(t, repo.Insert(ctx, recorded))
	hinted := newPurchase(userID, nil)
	hinted.CollectibleID = recorded.CollectibleID
	require.NoError(t, repo.Insert(ctx, hinted))

	_, err := repo.ClaimSessionless(ctx, userID, recorded.CollectibleID, session)
	require.Error(t, err)
	assert.True(t, IsDuplicateSession(err))
}

func TestClaimForHintRespectsWindow(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	session := "cs_live_w"
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	row := newPurchase(userID, &session)
	row.CreatedAt = at
	require.NoError(t, repo.Insert(ctx, row))

	_, err := repo.ClaimForHint(ctx, userID, row.CollectibleID, "hk_late", at.Add(time.Second))
	assert.True(t, db.IsNotFound(err))

	claimed, err := repo.ClaimForHint(ctx, userID, row.CollectibleID, "hk_w", at.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, row.ID, claimed.ID)

	found, err := repo.FindByHintKey(ctx, "hk_w")
	require.NoError(t, err)
	assert.Equal(t, row.ID, found.ID)

	_, err = repo.ClaimForHint(ctx, userID, row.CollectibleID, "hk_again", at.Add(-time.Hour))
	assert.True(t, db.IsNotFound(err), "a purchase answers one hint")
}

func TestCompletedTotals(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	for _, amount := range []string{"1.25", "2.50"} {
		row := newPurchase(userID, nil)
		row.Amount = decimal.RequireFromString(amount)
		require.NoError(t, repo.Insert(ctx, row))
	}
	failed := newPurchase(userID, nil)
	failed.Status = enums.PurchaseStatusFailed
	require.NoError(t, repo.Insert(ctx, failed))
	require.NoError(t, repo.Insert(ctx, newPurchase(uuid.New(), nil)))

	totals, err := repo.CompletedTotals(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals.Count)
	assert.True(t, totals.Spent.Equal(decimal.RequireFromString("3.75")), totals.Spent.String())

	empty, err := repo.CompletedTotals(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Spent.IsZero())
}

func TestGetBySessionScopesToOwner(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()
	session := "cs_test_owner"
	require.NoError(t, repo.Insert(ctx, newPurchase(owner, &session)))

	view, err := svc.GetBySession(ctx, owner, session)
	require.NoError(t, err)
	assert.Equal(t, session, *view.StripeSessionID)
	assert.True(t, view.Amount.Equal(decimal.RequireFromString("0.05")))

	_, err = svc.GetBySession(ctx, uuid.New(), session)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.GetBySession(ctx, owner, "cs_unknown")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	_, err = svc.GetBySession(ctx, owner, "")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestListByUser(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)

	ctx := context.Background()
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, newPurchase(owner, nil)))
	}
	require.NoError(t, repo.Insert(ctx, newPurchase(uuid.New(), nil)))

	page, err := svc.List(ctx, ListParams{UserID: owner, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := svc.List(ctx, ListParams{UserID: owner, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
}
