package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/collectibles-backend/pkg/config"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/metrics"
	"github.com/angelmondragon/collectibles-backend/pkg/money"
	stripeclient "github.com/angelmondragon/collectibles-backend/pkg/stripe"
)

// Gateway is the subset of the payment processor the checkout flow uses.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// Item is what the buyer intends to pay for.
type Item struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Intent is a transient purchase request; it is never persisted.
type Intent struct {
	Item       Item
	SuccessURL string
	CancelURL  string
	// Origin is the caller's declared origin, used only when URLs are omitted.
	Origin string
	UserID *uuid.UUID
}

// Session is the processor-assigned handle returned to the caller.
type Session struct {
	ID          string
	URL         string
	AmountUnits int64
}

// ConfirmedSession is the server-side view of a session after the buyer returns.
type ConfirmedSession struct {
	ID            string
	Paid          bool
	Metadata      SessionMetadata
	UserID        string
	AmountTotal   int64
	PaymentStatus string
}

// Service creates and confirms hosted checkout sessions. It never writes
// marketplace state.
type Service interface {
	CreateSession(ctx context.Context, intent Intent) (Session, error)
	ConfirmSession(ctx context.Context, sessionID string) (ConfirmedSession, error)
}

type ServiceParams struct {
	Gateway Gateway
	Config  config.CheckoutConfig
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

type service struct {
	gateway       Gateway
	currency      enums.Currency
	minimumCharge int64
	defaultOrigin string
	metrics       *metrics.PaymentMetrics
	logg          *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency, err := enums.ParseCurrency(params.Config.Currency)
	if err != nil {
		return nil, err
	}
	origin := params.Config.DefaultOrigin
	if origin == "" {
		origin = "http://localhost:3000"
	}
	return &service{
		gateway:       params.Gateway,
		currency:      currency,
		minimumCharge: params.Config.MinimumChargeUnits,
		defaultOrigin: origin,
		metrics:       params.Metrics,
		logg:          params.Logger,
	}, nil
}

// ValidateItem reports the first problem with item as an InvalidItem error.
func ValidateItem(item Item) error {
	switch {
	case strings.TrimSpace(item.ID) == "":
		return pkgerrors.New(pkgerrors.CodeInvalidItem, "item id is required").WithDetails(map[string]any{"field": "item.id"})
	case strings.TrimSpace(item.Name) == "":
		return pkgerrors.New(pkgerrors.CodeInvalidItem, "item name is required").WithDetails(map[string]any{"field": "item.name"})
	case !item.Price.IsPositive():
		return pkgerrors.New(pkgerrors.CodeInvalidItem, "item price must be greater than zero").WithDetails(map[string]any{"field": "item.price"})
	}
	return nil
}

func (s *service) CreateSession(ctx context.Context, intent Intent) (Session, error) {
	if err := ValidateItem(intent.Item); err != nil {
		s.metrics.IncSession("invalid_item")
		return Session{}, err
	}
	name := strings.TrimSpace(intent.Item.Name)
	itemID := strings.TrimSpace(intent.Item.ID)

	successURL, cancelURL, err := s.redirectURLs(intent, name)
	if err != nil {
		s.metrics.IncSession("invalid_request")
		return Session{}, err
	}

	units := money.ChargeUnits(intent.Item.Price, s.minimumCharge)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(s.currency.String()),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
					UnitAmount: stripe.Int64(units),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	meta := SessionMetadata{CollectibleID: itemID, ItemName: name, UnitPrice: intent.Item.Price}
	for k, v := range meta.Map() {
		params.AddMetadata(k, v)
	}
	if intent.UserID != nil {
		params.ClientReferenceID = stripe.String(intent.UserID.String())
	}

	started := time.Now()
	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	s.metrics.ObserveStripe("checkout_session_create", time.Since(started))
	if err != nil {
		s.metrics.IncSession("processor_error")
		logCtx := s.logg.WithFields(ctx, stripeclient.ErrorFields(err))
		s.logg.Warn(logCtx, "checkout session creation failed")
		return Session{}, pkgerrors.Wrap(pkgerrors.CodePaymentSessionCreationFailed, err, "create checkout session").
			WithDetails(map[string]any{"processor_message": stripeclient.ErrorMessage(err)})
	}
	if sess == nil || sess.ID == "" {
		s.metrics.IncSession("processor_error")
		return Session{}, pkgerrors.New(pkgerrors.CodePaymentSessionCreationFailed, "processor returned no session id")
	}

	s.metrics.IncSession("created")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"stripe_session_id": sess.ID,
		"collectible_id":    itemID,
		"amount_units":      units,
	}), "checkout session created")

	return Session{ID: sess.ID, URL: sess.URL, AmountUnits: units}, nil
}

func (s *service) redirectURLs(intent Intent, itemName string) (string, string, error) {
	successURL := strings.TrimSpace(intent.SuccessURL)
	cancelURL := strings.TrimSpace(intent.CancelURL)
	if successURL == "" || cancelURL == "" {
		origin := resolveOrigin(intent.Origin, s.defaultOrigin)
		if successURL == "" {
			successURL = fallbackSuccessURL(origin, itemName)
		}
		if cancelURL == "" {
			cancelURL = fallbackCancelURL(origin)
		}
	}
	if !validRedirectURL(successURL) {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "successUrl must be an absolute http(s) url").
			WithDetails(map[string]any{"field": "successUrl"})
	}
	if !validRedirectURL(cancelURL) {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "cancelUrl must be an absolute http(s) url").
			WithDetails(map[string]any{"field": "cancelUrl"})
	}
	return successURL, cancelURL, nil
}

func (s *service) ConfirmSession(ctx context.Context, sessionID string) (ConfirmedSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ConfirmedSession{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	started := time.Now()
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	s.metrics.ObserveStripe("checkout_session_get", time.Since(started))
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return ConfirmedSession{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "checkout session not found")
		}
		s.logg.Warn(s.logg.WithFields(ctx, stripeclient.ErrorFields(err)), "checkout session lookup failed")
		return ConfirmedSession{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout session lookup failed")
	}
	return FromStripeSession(sess)
}

// FromStripeSession converts a processor session into the correlated view
// reconciliation needs. Sessions without the required metadata are rejected.
func FromStripeSession(sess *stripe.CheckoutSession) (ConfirmedSession, error) {
	if sess == nil || sess.ID == "" {
		return ConfirmedSession{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is empty")
	}
	meta, err := ParseSessionMetadata(sess.Metadata)
	if err != nil {
		return ConfirmedSession{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session cannot be correlated")
	}
	return ConfirmedSession{
		ID:            sess.ID,
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid || sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
		Metadata:      meta,
		UserID:        strings.TrimSpace(sess.ClientReferenceID),
		AmountTotal:   sess.AmountTotal,
		PaymentStatus: string(sess.PaymentStatus),
	}, nil
}

// PurchaseAmount is the display amount a confirmed session is recorded at.
func (c ConfirmedSession) PurchaseAmount() decimal.Decimal {
	if !c.Metadata.UnitPrice.IsZero() {
		return c.Metadata.UnitPrice
	}
	return money.FromMinorUnits(c.AmountTotal)
}
