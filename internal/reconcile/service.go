// Package reconcile turns a concluded payment into durable marketplace state.
// Both outcome channels (browser redirect and processor webhook) call into it.
// The unique session id on purchases makes the second call for a session a
// no-op; a hint without a session is keyed by its idempotency key and is later
// claimed by the session's own signal.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/internal/activities"
	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	"github.com/angelmondragon/collectibles-backend/internal/orders"
	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/metrics"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox/payloads"
)

// Status is the outcome reported to callers.
type Status string

const (
	StatusCompleted         Status = "completed"
	StatusAlreadyReconciled Status = "already_reconciled"
)

// Signal is a concluded-payment notification from either outcome channel.
type Signal struct {
	// SessionID is empty only for redirect hints that carried no session.
	SessionID     string
	UserID        uuid.UUID
	CollectibleID uuid.UUID
	ItemName      string
	Amount        decimal.Decimal
	Source        enums.PurchaseSource
	// IdempotencyKey dedupes hints without a session. When empty a key is
	// derived from the user, collectible and amount.
	IdempotencyKey string
}

// hintClaimWindow bounds how far back a hint may match a purchase that its
// session already reconciled.
const hintClaimWindow = 24 * time.Hour

type Result struct {
	Status     Status     `json:"status"`
	PurchaseID uuid.UUID  `json:"purchaseId"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
	// OrderMatched is true when an existing active buy order was completed.
	OrderMatched bool `json:"orderMatched"`
}

// Service is the single entry point for reconciliation.
type Service interface {
	Reconcile(ctx context.Context, sig Signal) (*Result, error)
}

type ServiceParams struct {
	Tx           db.TxRunner
	Purchases    purchases.Repository
	Orders       orders.Repository
	Collectibles collectibles.Repository
	Trades       trades.Repository
	Activities   activities.Recorder
	Outbox       outbox.Emitter
	Metrics      *metrics.PaymentMetrics
	Logger       *logger.Logger
	Now          func() time.Time
}

type service struct {
	tx           db.TxRunner
	purchases    purchases.Repository
	orders       orders.Repository
	collectibles collectibles.Repository
	trades       trades.Repository
	activities   activities.Recorder
	outbox       outbox.Emitter
	metrics      *metrics.PaymentMetrics
	logg         *logger.Logger
	now          func() time.Time
}

var errAlreadyReconciled = errors.New("session already reconciled")

// NewService wires reconciliation with its stores.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Purchases == nil:
		return nil, fmt.Errorf("purchases repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Collectibles == nil:
		return nil, fmt.Errorf("collectibles repository required")
	case params.Trades == nil:
		return nil, fmt.Errorf("trades repository required")
	case params.Activities == nil:
		return nil, fmt.Errorf("activity recorder required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:           params.Tx,
		purchases:    params.Purchases,
		orders:       params.Orders,
		collectibles: params.Collectibles,
		trades:       params.Trades,
		activities:   params.Activities,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         params.Logger,
		now:          now,
	}, nil
}

func validate(sig Signal) error {
	switch {
	case sig.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required to attribute a payment")
	case sig.CollectibleID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "collectible id is required to attribute a payment")
	case sig.Amount.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	case !sig.Source.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown reconciliation source")
	}
	return nil
}

// Reconcile records the purchase, completes the matching order (or writes a
// completed one), settles the trade, credits the collectible and queues the
// activity, all in one transaction. A payment the other channel already
// recorded only links the two signals. Store failures surface as ReconciliationFailed and are never
// retried here.
func (s *service) Reconcile(ctx context.Context, sig Signal) (*Result, error) {
	source := string(sig.Source)
	if err := validate(sig); err != nil {
		s.metrics.IncReconciliation(source, "invalid")
		return nil, err
	}
	sig.SessionID = strings.TrimSpace(sig.SessionID)
	sig.ItemName = strings.TrimSpace(sig.ItemName)
	if sig.SessionID == "" {
		sig.IdempotencyKey = hintKey(sig)
	}

	ctx = s.logg.WithUserID(ctx, sig.UserID.String())
	if sig.SessionID != "" {
		ctx = s.logg.WithSessionID(ctx, sig.SessionID)
	}
	ctx = s.logg.WithField(ctx, "reconcile_source", source)

	now := s.now()
	var result Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.apply(ctx, tx, sig, now)
		if err != nil {
			return err
		}
		result = res
		return nil
	})

	switch {
	case err == nil && result.Status == StatusAlreadyReconciled:
		s.metrics.IncReconciliation(source, string(StatusAlreadyReconciled))
		s.logg.Info(s.logg.WithField(ctx, "purchase_id", result.PurchaseID.String()), "payment already reconciled")
		return &result, nil
	case err == nil:
		s.metrics.IncReconciliation(source, string(StatusCompleted))
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"purchase_id":   result.PurchaseID.String(),
			"order_matched": result.OrderMatched,
		}), "payment reconciled")
		return &result, nil
	case errors.Is(err, errAlreadyReconciled):
		s.metrics.IncReconciliation(source, string(StatusAlreadyReconciled))
		s.logg.Info(ctx, "payment already reconciled")
		return s.existing(ctx, sig), nil
	default:
		s.metrics.IncReconciliation(source, "failed")
		s.logg.Error(ctx, "reconciliation failed; manual follow-up required", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeReconciliationFailed, err, "reconcile payment")
	}
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, sig Signal, now time.Time) (Result, error) {
	purchaseRepo := s.purchases.WithTx(tx)
	orderRepo := s.orders.WithTx(tx)

	claimed, err := s.claim(ctx, purchaseRepo, sig, now)
	if err != nil {
		return Result{}, err
	}
	if claimed != nil {
		return Result{Status: StatusAlreadyReconciled, PurchaseID: claimed.ID, OrderID: claimed.OrderID}, nil
	}

	var sessionID, hint *string
	if sig.SessionID != "" {
		id := sig.SessionID
		sessionID = &id
	} else {
		key := sig.IdempotencyKey
		hint = &key
	}

	purchase := &models.Purchase{
		ID:              models.NewID(),
		UserID:          sig.UserID,
		CollectibleID:   sig.CollectibleID,
		Amount:          sig.Amount,
		StripeSessionID: sessionID,
		HintKey:         hint,
		Status:          enums.PurchaseStatusCompleted,
		Source:          sig.Source,
		CreatedAt:       now,
	}
	// The unique session and hint indexes are the compare-and-set: whichever
	// channel inserts first owns the transition.
	if err := purchaseRepo.Insert(ctx, purchase); err != nil {
		if purchases.IsDuplicateSession(err) || purchases.IsDuplicateHint(err) {
			return Result{}, errAlreadyReconciled
		}
		return Result{}, fmt.Errorf("insert purchase: %w", err)
	}

	order, matched, err := s.completeOrder(ctx, orderRepo, sig, sessionID, now)
	if err != nil {
		return Result{}, err
	}
	if err := purchaseRepo.AttachOrder(ctx, purchase.ID, order.ID); err != nil {
		return Result{}, fmt.Errorf("attach order: %w", err)
	}
	purchase.OrderID = &order.ID

	if err := s.recordTrade(ctx, tx, sig, order, matched, now); err != nil {
		return Result{}, err
	}

	if err := s.collectibles.WithTx(tx).Credit(ctx, &models.UserCollectible{
		ID:            models.NewID(),
		UserID:        sig.UserID,
		CollectibleID: sig.CollectibleID,
		PurchasePrice: sig.Amount,
		PurchasedAt:   now,
	}); err != nil {
		return Result{}, fmt.Errorf("credit collectible: %w", err)
	}

	if err := s.activities.Record(ctx, tx, activities.Entry{
		UserID:      sig.UserID,
		Type:        enums.ActivityPurchase,
		Description: purchaseDescription(sig.ItemName),
		Metadata: map[string]any{
			"purchase_id":    purchase.ID.String(),
			"order_id":       order.ID.String(),
			"collectible_id": sig.CollectibleID.String(),
			"amount":         sig.Amount.String(),
			"source":         string(sig.Source),
		},
	}); err != nil {
		return Result{}, fmt.Errorf("record activity: %w", err)
	}

	actor := &outbox.ActorRef{UserID: sig.UserID, Channel: string(sig.Source)}
	if matched {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateMarketOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     sig.UserID,
				FromStatus: enums.OrderStatusActive,
				ToStatus:   enums.OrderStatusCompleted,
			},
		}); err != nil {
			return Result{}, fmt.Errorf("emit order event: %w", err)
		}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseCompleted,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.PurchaseCompletedEvent{
			PurchaseID:      purchase.ID,
			UserID:          sig.UserID,
			CollectibleID:   sig.CollectibleID,
			OrderID:         purchase.OrderID,
			Amount:          sig.Amount,
			StripeSessionID: sessionID,
			Source:          sig.Source,
			OrderMatched:    matched,
		},
	}); err != nil {
		return Result{}, fmt.Errorf("emit purchase event: %w", err)
	}

	return Result{
		Status:       StatusCompleted,
		PurchaseID:   purchase.ID,
		OrderID:      purchase.OrderID,
		OrderMatched: matched,
	}, nil
}

// completeOrder flips the order that best matches the payment, or writes a
// completed order when none is live. Orders are matched by the session that
// created them first, then by the newest live buy order for the same
// collectible. Orders for other collectibles are never completed.
func (s *service) completeOrder(ctx context.Context, repo orders.Repository, sig Signal, sessionID *string, now time.Time) (*models.MarketOrder, bool, error) {
	candidate, err := s.findCandidate(ctx, repo, sig, now)
	if err != nil {
		return nil, false, fmt.Errorf("find active order: %w", err)
	}
	if candidate != nil {
		ok, err := repo.CompleteIfActive(ctx, candidate.ID, now)
		if err != nil {
			return nil, false, fmt.Errorf("complete order: %w", err)
		}
		if ok {
			candidate.Status = enums.OrderStatusCompleted
			candidate.CompletedAt = &now
			return candidate, true, nil
		}
		s.logg.Warn(s.logg.WithField(ctx, "order_id", candidate.ID.String()), "order changed before completion; recording standalone order")
	}

	completedAt := now
	order := &models.MarketOrder{
		ID:              models.NewID(),
		UserID:          sig.UserID,
		CollectibleID:   sig.CollectibleID,
		OrderType:       enums.OrderTypeBuy,
		Side:            enums.OrderSideBuy,
		Quantity:        1,
		Price:           sig.Amount,
		Status:          enums.OrderStatusCompleted,
		StripeSessionID: sessionID,
		ExpiresAt:       now,
		CompletedAt:     &completedAt,
	}
	if _, err := repo.Create(ctx, order); err != nil {
		return nil, false, fmt.Errorf("insert completed order: %w", err)
	}
	return order, false, nil
}

func (s *service) findCandidate(ctx context.Context, repo orders.Repository, sig Signal, now time.Time) (*models.MarketOrder, error) {
	if sig.SessionID != "" {
		order, err := repo.FindActiveBySession(ctx, sig.UserID, sig.SessionID, now)
		if err == nil {
			return order, nil
		}
		if !db.IsNotFound(err) {
			return nil, err
		}
	}
	collectibleID := sig.CollectibleID
	order, err := repo.FindLatestActiveBuy(ctx, sig.UserID, &collectibleID, now)
	if err == nil {
		return order, nil
	}
	if db.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

// claim finds a purchase that already accounts for this payment through the
// other channel. A session signal takes over the oldest purchase its hint
// recorded without a session. A hint matches its own earlier purchase by key,
// or else marks the newest recent purchase its session already reconciled.
// A nil purchase means nothing was claimed.
func (s *service) claim(ctx context.Context, repo purchases.Repository, sig Signal, now time.Time) (*models.Purchase, error) {
	var (
		purchase *models.Purchase
		err      error
	)
	if sig.SessionID != "" {
		purchase, err = repo.ClaimSessionless(ctx, sig.UserID, sig.CollectibleID, sig.SessionID)
	} else {
		purchase, err = repo.FindByHintKey(ctx, sig.IdempotencyKey)
		if db.IsNotFound(err) {
			purchase, err = repo.ClaimForHint(ctx, sig.UserID, sig.CollectibleID, sig.IdempotencyKey, now.Add(-hintClaimWindow))
		}
	}
	switch {
	case err == nil:
		return purchase, nil
	case db.IsNotFound(err):
		return nil, nil
	case purchases.IsDuplicateSession(err):
		return nil, errAlreadyReconciled
	default:
		return nil, fmt.Errorf("claim purchase: %w", err)
	}
}

// recordTrade settles the pending trade the order opened, or writes a
// completed one when the order never opened a trade.
func (s *service) recordTrade(ctx context.Context, tx *gorm.DB, sig Signal, order *models.MarketOrder, matched bool, now time.Time) error {
	repo := s.trades.WithTx(tx)
	if matched {
		ok, err := repo.Settle(ctx, order.ID, enums.TradeStatusCompleted, now)
		if err != nil {
			return fmt.Errorf("settle trade: %w", err)
		}
		if ok {
			return nil
		}
	}

	var seller *uuid.UUID
	collectible, err := s.collectibles.WithTx(tx).FindByID(ctx, sig.CollectibleID)
	switch {
	case err == nil:
		seller = collectible.UserID
	case !db.IsNotFound(err):
		return fmt.Errorf("load collectible: %w", err)
	}

	buyer := sig.UserID
	orderID := order.ID
	completedAt := now
	if err := repo.Create(ctx, &models.Trade{
		ID:            models.NewID(),
		BuyerID:       &buyer,
		SellerID:      seller,
		CollectibleID: sig.CollectibleID,
		OrderID:       &orderID,
		Price:         sig.Amount,
		TradeType:     enums.TradeTypeBuy,
		Status:        enums.TradeStatusCompleted,
		CreatedAt:     now,
		CompletedAt:   &completedAt,
	}); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// existing loads what the first reconciliation recorded. A lookup failure
// still reports the no-op; the caller only needs to know nothing changed.
func (s *service) existing(ctx context.Context, sig Signal) *Result {
	result := &Result{Status: StatusAlreadyReconciled}
	var (
		purchase *models.Purchase
		err      error
	)
	if sig.SessionID != "" {
		purchase, err = s.purchases.FindBySessionID(ctx, sig.SessionID)
	} else {
		purchase, err = s.purchases.FindByHintKey(ctx, sig.IdempotencyKey)
	}
	if err != nil {
		s.logg.WarnErr(ctx, "reconciled purchase lookup failed", err)
		return result
	}
	result.PurchaseID = purchase.ID
	result.OrderID = purchase.OrderID
	return result
}

func purchaseDescription(itemName string) string {
	if itemName == "" {
		return "Purchased a collectible"
	}
	return fmt.Sprintf("Purchased %s", itemName)
}
