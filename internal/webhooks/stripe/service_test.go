package stripewebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/collectibles-backend/internal/reconcile"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

type stubReconciler struct {
	signals []reconcile.Signal
	status  reconcile.Status
	err     error
}

func (s *stubReconciler) Reconcile(ctx context.Context, sig reconcile.Signal) (*reconcile.Result, error) {
	s.signals = append(s.signals, sig)
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == "" {
		status = reconcile.StatusCompleted
	}
	return &reconcile.Result{Status: status, PurchaseID: uuid.New()}, nil
}

func newTestService(t *testing.T, rec *stubReconciler) (*Service, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	svc, err := NewService(ServiceParams{
		Reconciler: rec,
		Logger:     logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc, buf
}

func sessionEvent(t *testing.T, eventType stripe.EventType, sess *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func paidSession(userID, collectibleID uuid.UUID) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:                "cs_test_" + uuid.NewString(),
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: userID.String(),
		AmountTotal:       50,
		Metadata: map[string]string{
			"collectible_id": collectibleID.String(),
			"item_name":      "X",
			"unit_price":     "0.05",
		},
	}
}

func TestHandleEventReconcilesCompletedSession(t *testing.T) {
	rec := &stubReconciler{}
	svc, _ := newTestService(t, rec)
	userID, collectibleID := uuid.New(), uuid.New()
	sess := paidSession(userID, collectibleID)

	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, sess))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeReconciled {
		t.Fatalf("expected reconciled, got %s", outcome)
	}
	if len(rec.signals) != 1 {
		t.Fatalf("expected one reconcile call, got %d", len(rec.signals))
	}
	sig := rec.signals[0]
	if sig.SessionID != sess.ID || sig.UserID != userID || sig.CollectibleID != collectibleID {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if sig.Source != enums.PurchaseSourceWebhook {
		t.Fatalf("expected webhook source, got %s", sig.Source)
	}
	if sig.Amount.String() != "0.05" {
		t.Fatalf("expected amount 0.05, got %s", sig.Amount)
	}
}

func TestHandleEventAsyncPaymentSucceeded(t *testing.T) {
	rec := &stubReconciler{status: reconcile.StatusAlreadyReconciled}
	svc, _ := newTestService(t, rec)

	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, paidSession(uuid.New(), uuid.New())))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeAlreadyReconciled {
		t.Fatalf("expected already_reconciled, got %s", outcome)
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	rec := &stubReconciler{}
	svc, _ := newTestService(t, rec)

	for _, eventType := range []stripe.EventType{stripe.EventTypePaymentIntentSucceeded, stripe.EventTypeCheckoutSessionExpired, "customer.created"} {
		outcome, err := svc.HandleEvent(context.Background(), &stripe.Event{ID: "evt_1", Type: eventType})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", eventType, err)
		}
		if outcome != OutcomeIgnored {
			t.Fatalf("%s: expected ignored, got %s", eventType, outcome)
		}
	}
	if len(rec.signals) != 0 {
		t.Fatalf("ignored events must not reconcile")
	}
}

func TestHandleEventAcknowledgesUnattributableSessions(t *testing.T) {
	rec := &stubReconciler{}
	svc, logs := newTestService(t, rec)

	noUser := paidSession(uuid.New(), uuid.New())
	noUser.ClientReferenceID = ""
	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, noUser))
	if err != nil || outcome != OutcomeUnattributed {
		t.Fatalf("expected unattributed, got %s (%v)", outcome, err)
	}

	noMeta := paidSession(uuid.New(), uuid.New())
	noMeta.Metadata = map[string]string{"item_name": "X"}
	outcome, err = svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, noMeta))
	if err != nil || outcome != OutcomeUncorrelated {
		t.Fatalf("expected uncorrelated, got %s (%v)", outcome, err)
	}

	if len(rec.signals) != 0 {
		t.Fatalf("uncorrelated sessions must not reconcile")
	}
	if !strings.Contains(logs.String(), "no user reference") {
		t.Fatalf("expected unattributed session to be logged, got %s", logs.String())
	}
}

func TestHandleEventWaitsForUnpaidSession(t *testing.T) {
	rec := &stubReconciler{}
	svc, _ := newTestService(t, rec)
	sess := paidSession(uuid.New(), uuid.New())
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	outcome, err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, sess))
	if err != nil || outcome != OutcomeAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s (%v)", outcome, err)
	}
	if len(rec.signals) != 0 {
		t.Fatalf("unpaid sessions must not reconcile")
	}
}

func TestHandleEventSurfacesReconcileFailure(t *testing.T) {
	rec := &stubReconciler{err: pkgerrors.Wrap(pkgerrors.CodeReconciliationFailed, errors.New("disk full"), "reconcile payment")}
	svc, _ := newTestService(t, rec)

	_, err := svc.HandleEvent(context.Background(), sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, paidSession(uuid.New(), uuid.New())))
	if pkgerrors.CodeOf(err) != pkgerrors.CodeReconciliationFailed {
		t.Fatalf("expected reconciliation failure, got %v", err)
	}
}

type memoryEventStore struct {
	keys map[string]bool
}

func (m *memoryEventStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryEventStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memoryEventStore) WebhookEventKey(provider, eventID string) string {
	return provider + ":" + eventID
}

func TestEventGuardClaimAndRelease(t *testing.T) {
	store := &memoryEventStore{keys: map[string]bool{}}
	guard, err := NewEventGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	ctx := context.Background()

	first, err := guard.Claim(ctx, "evt_1")
	if err != nil || !first {
		t.Fatalf("expected first claim to win, got %v (%v)", first, err)
	}
	again, err := guard.Claim(ctx, "evt_1")
	if err != nil || again {
		t.Fatalf("expected replay to lose, got %v (%v)", again, err)
	}
	if err := guard.Release(ctx, "evt_1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	retry, err := guard.Claim(ctx, "evt_1")
	if err != nil || !retry {
		t.Fatalf("expected claim after release to win, got %v (%v)", retry, err)
	}
}

func TestNilEventGuardClaimsEverything(t *testing.T) {
	var guard *EventGuard
	ok, err := guard.Claim(context.Background(), "evt_1")
	if err != nil || !ok {
		t.Fatalf("nil guard should claim, got %v (%v)", ok, err)
	}
	if err := guard.Release(context.Background(), "evt_1"); err != nil {
		t.Fatalf("nil guard release: %v", err)
	}
}
