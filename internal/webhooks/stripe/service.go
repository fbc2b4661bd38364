package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/internal/reconcile"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	"github.com/angelmondragon/collectibles-backend/pkg/metrics"
)

// Outcome describes what a verified event led to. Every outcome except a
// returned error is acknowledged with 200 so the processor stops redelivering.
type Outcome string

const (
	OutcomeReconciled        Outcome = "reconciled"
	OutcomeAlreadyReconciled Outcome = "already_reconciled"
	OutcomeIgnored           Outcome = "ignored"
	OutcomeAwaitingPayment   Outcome = "awaiting_payment"
	OutcomeUnattributed      Outcome = "unattributed"
	OutcomeUncorrelated      Outcome = "uncorrelated"
)

type reconciler interface {
	Reconcile(ctx context.Context, sig reconcile.Signal) (*reconcile.Result, error)
}

type ServiceParams struct {
	Reconciler reconciler
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
}

type Service struct {
	reconciler reconciler
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// HandleEvent acts on checkout completion events and ignores everything else.
// A returned error means the event should be redelivered.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID)
	eventType := string(event.Type)

	outcome, err := s.handle(ctx, event)
	if err != nil {
		s.metrics.IncWebhook(eventType, "failed")
		return "", err
	}
	s.metrics.IncWebhook(eventType, string(outcome))
	return outcome, nil
}

func (s *Service) handle(ctx context.Context, event *stripe.Event) (Outcome, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
	default:
		s.logg.Debug(s.logg.WithField(ctx, "event_type", string(event.Type)), "stripe event ignored")
		return OutcomeIgnored, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	ctx = s.logg.WithSessionID(ctx, sess.ID)

	confirmed, err := checkout.FromStripeSession(&sess)
	if err != nil {
		s.logg.Error(ctx, "paid checkout session cannot be correlated to a collectible", err)
		return OutcomeUncorrelated, nil
	}
	if !confirmed.Paid {
		// Delayed payment methods complete the session first and settle later.
		s.logg.Info(s.logg.WithField(ctx, "payment_status", confirmed.PaymentStatus), "checkout session not paid yet")
		return OutcomeAwaitingPayment, nil
	}

	sig, err := reconcile.SignalFromSession(confirmed, enums.PurchaseSourceWebhook)
	if err != nil {
		if errors.Is(err, reconcile.ErrUnattributed) {
			s.logg.Error(ctx, "paid checkout session has no user reference; not reconciled", err)
			return OutcomeUnattributed, nil
		}
		s.logg.Error(ctx, "paid checkout session cannot be correlated to a collectible", err)
		return OutcomeUncorrelated, nil
	}

	result, err := s.reconciler.Reconcile(ctx, sig)
	if err != nil {
		return "", fmt.Errorf("reconcile session %s: %w", sess.ID, err)
	}
	if result.Status == reconcile.StatusAlreadyReconciled {
		return OutcomeAlreadyReconciled, nil
	}
	return OutcomeReconciled, nil
}
