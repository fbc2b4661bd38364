package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/internal/activities"
	"github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/internal/trades"
	"github.com/angelmondragon/collectibles-backend/pkg/db"
	"github.com/angelmondragon/collectibles-backend/pkg/db/models"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox"
	"github.com/angelmondragon/collectibles-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/collectibles-backend/pkg/pagination"
)

type sessionCreator interface {
	CreateSession(ctx context.Context, intent checkout.Intent) (checkout.Session, error)
}

type collectibleFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Collectible, error)
}

// Service defines the order book operations available to users.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
	ListOrders(ctx context.Context, params ListParams) (*OrderList, error)
	ListOpenBook(ctx context.Context, collectibleID uuid.UUID) (*OrderBook, error)
}

type ServiceParams struct {
	Repo         Repository
	Tx           db.TxRunner
	Collectibles collectibleFinder
	// Checkout may be nil when payments are not configured; buy-side orders are
	// then refused.
	Checkout   sessionCreator
	Trades     trades.Repository
	Outbox     outbox.Emitter
	Activities activities.Recorder
	OrderTTL   time.Duration
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo         Repository
	tx           db.TxRunner
	collectibles collectibleFinder
	checkout     sessionCreator
	trades       trades.Repository
	outbox       outbox.Emitter
	activities   activities.Recorder
	orderTTL     time.Duration
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the order book service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Collectibles == nil {
		return nil, fmt.Errorf("collectibles lookup required")
	}
	if params.Trades == nil {
		return nil, fmt.Errorf("trades repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Activities == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.OrderTTL <= 0 {
		return nil, fmt.Errorf("order ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		collectibles: params.Collectibles,
		checkout:     params.Checkout,
		trades:       params.Trades,
		outbox:       params.Outbox,
		activities:   params.Activities,
		orderTTL:     params.OrderTTL,
		logg:         params.Logger,
		now:          now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	side, err := resolveSide(input)
	if err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").WithDetails(map[string]any{"field": "quantity"})
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative").WithDetails(map[string]any{"field": "price"})
	}
	if (input.OrderType == enums.OrderTypeBuy || input.OrderType == enums.OrderTypeSell) && !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero").WithDetails(map[string]any{"field": "price"})
	}

	collectible, err := s.collectibles.FindByID(ctx, input.CollectibleID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collectible not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collectible")
	}

	price := input.Price
	if input.OrderType == enums.OrderTypeMarket && price.IsZero() {
		price = collectible.Price
	}

	now := s.now()
	order := &models.MarketOrder{
		ID:            models.NewID(),
		UserID:        userID,
		CollectibleID: collectible.ID,
		OrderType:     input.OrderType,
		Side:          side,
		Quantity:      input.Quantity,
		Price:         price,
		Status:        enums.OrderStatusActive,
		ExpiresAt:     now.Add(s.orderTTL),
	}

	result := &CreateOrderResult{}
	if side == enums.OrderSideBuy {
		if s.checkout == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
		}
		buyer := userID
		session, err := s.checkout.CreateSession(ctx, checkout.Intent{
			Item: checkout.Item{
				ID:    collectible.ID.String(),
				Name:  collectible.Title,
				Price: price.Mul(decimal.NewFromInt(int64(input.Quantity))),
			},
			SuccessURL: input.SuccessURL,
			CancelURL:  input.CancelURL,
			Origin:     input.Origin,
			UserID:     &buyer,
		})
		if err != nil {
			return nil, err
		}
		order.StripeSessionID = &session.ID
		result.SessionID = session.ID
		result.CheckoutURL = session.URL
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if err := s.trades.WithTx(tx).Create(ctx, openTrade(order, collectible)); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, tx, activities.Entry{
			UserID:      userID,
			Type:        enums.ActivityOrderPlaced,
			Description: fmt.Sprintf("Placed %s order for %d x %s", input.OrderType, input.Quantity, collectible.Title),
			Metadata: map[string]any{
				"order_id":       order.ID.String(),
				"collectible_id": collectible.ID.String(),
				"price":          price.String(),
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateMarketOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderPlacedEvent{
				OrderID:         order.ID,
				UserID:          userID,
				CollectibleID:   collectible.ID,
				OrderType:       order.OrderType,
				Side:            side,
				Quantity:        order.Quantity,
				Price:           price,
				StripeSessionID: order.StripeSessionID,
			},
		})
	})
	if err != nil {
		if order.StripeSessionID != nil {
			// The session is live at the processor; a completed payment still
			// reconciles through the no-order fallback.
			s.logg.Warn(s.logg.WithSessionID(ctx, *order.StripeSessionID), "order not persisted after checkout session was created")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	result.Order = ToView(order, now)
	return result, nil
}

// openTrade pairs the order's owner with the collectible's creator on the
// opposite side. A sell order has no buyer until someone pays.
func openTrade(order *models.MarketOrder, collectible *models.Collectible) *models.Trade {
	owner := order.UserID
	orderID := order.ID
	trade := &models.Trade{
		ID:            models.NewID(),
		CollectibleID: order.CollectibleID,
		OrderID:       &orderID,
		Price:         order.Price.Mul(decimal.NewFromInt(int64(order.Quantity))),
		TradeType:     enums.TradeTypeFor(order.Side),
		Status:        enums.TradeStatusPending,
	}
	if order.Side == enums.OrderSideSell {
		trade.SellerID = &owner
	} else {
		trade.BuyerID = &owner
		trade.SellerID = collectible.UserID
	}
	return trade
}

func resolveSide(input CreateOrderInput) (enums.OrderSide, error) {
	if !input.OrderType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order_type must be one of buy, sell, limit, market").
			WithDetails(map[string]any{"field": "order_type"})
	}
	if input.Side != nil && !input.Side.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "side must be buy or sell").WithDetails(map[string]any{"field": "side"})
	}
	implied, ok := enums.SideFor(input.OrderType)
	if ok {
		if input.Side != nil && *input.Side != implied {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "side conflicts with order_type").WithDetails(map[string]any{"field": "side"})
		}
		return implied, nil
	}
	if input.Side == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "side is required for limit and market orders").
			WithDetails(map[string]any{"field": "side"})
	}
	return *input.Side, nil
}

func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	now := s.now()
	var cancelled *models.MarketOrder

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		current := order.EffectiveStatus(now)
		if current != enums.OrderStatusActive {
			return invalidTransition(current)
		}
		ok, err := repo.CancelIfActive(ctx, order.ID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			latest, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return err
			}
			return invalidTransition(latest.EffectiveStatus(now))
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if _, err := s.trades.WithTx(tx).Settle(ctx, order.ID, enums.TradeStatusCancelled, now); err != nil {
			return err
		}
		if err := s.activities.Record(ctx, tx, activities.Entry{
			UserID:      userID,
			Type:        enums.ActivityOrderCancelled,
			Description: fmt.Sprintf("Cancelled %s order", order.OrderType),
			Metadata:    map[string]any{"order_id": order.ID.String()},
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateMarketOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     userID,
				FromStatus: enums.OrderStatusActive,
				ToStatus:   enums.OrderStatusCancelled,
			},
		}); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	view := ToView(cancelled, now)
	return &view, nil
}

func invalidTransition(current enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("order is %s and can no longer be cancelled", current)).
		WithDetails(map[string]any{"status": current})
}

func (s *service) ListOrders(ctx context.Context, params ListParams) (*OrderList, error) {
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

	now := s.now()
	rows, next, err := s.repo.ListByUser(ctx, ListQuery{
		UserID: params.UserID,
		Status: params.Status,
		Now:    now,
		Limit:  params.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	list := &OrderList{Orders: make([]OrderView, 0, len(rows))}
	for i := range rows {
		list.Orders = append(list.Orders, ToView(&rows[i], now))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) ListOpenBook(ctx context.Context, collectibleID uuid.UUID) (*OrderBook, error) {
	now := s.now()
	rows, err := s.repo.ListOpen(ctx, collectibleID, now, pagination.MaxLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open orders")
	}

	book := &OrderBook{CollectibleID: collectibleID, Bids: []OrderView{}, Asks: []OrderView{}}
	for i := range rows {
		view := ToView(&rows[i], now)
		if view.Side == enums.OrderSideBuy {
			book.Bids = append(book.Bids, view)
		} else {
			book.Asks = append(book.Asks, view)
		}
	}
	sort.SliceStable(book.Bids, func(i, j int) bool { return book.Bids[i].Price.GreaterThan(book.Bids[j].Price) })
	sort.SliceStable(book.Asks, func(i, j int) bool { return book.Asks[i].Price.LessThan(book.Asks[j].Price) })
	return book, nil
}
