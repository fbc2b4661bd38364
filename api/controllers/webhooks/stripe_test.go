package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	stripewebhook "github.com/angelmondragon/collectibles-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	stripeclient "github.com/angelmondragon/collectibles-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

const testSecret = "whsec_test"

func newVerifier(t *testing.T) *stripeclient.WebhookVerifier {
	t.Helper()
	v, err := stripeclient.NewWebhookVerifier(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return v
}

func newGuard(t *testing.T, store *inMemoryStore) *stripewebhook.EventGuard {
	t.Helper()
	guard, err := stripewebhook.NewEventGuard(store, time.Minute)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func post(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/payment", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t, stripe.EventTypeCheckoutSessionCompleted)
	service := &fakeStripeWebhookService{outcome: stripewebhook.OutcomeReconciled}
	handler := StripeWebhook(service, newVerifier(t), newGuard(t, newInMemoryStore()), nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"received":true}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	// Replay the same event
	rec2 := post(handler, payload, header)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, stripe.EventTypeCheckoutSessionCompleted)
	service := &fakeStripeWebhookService{}
	store := newInMemoryStore()
	handler := StripeWebhook(service, newVerifier(t), newGuard(t, store), nil)

	for name, header := range map[string]string{
		"forged":       "t=1,v1=invalid",
		"missing":      "",
		"wrong secret": buildStripeSignatureHeader(payload, "whsec_other", time.Now().Unix()),
	} {
		rec := post(handler, payload, header)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 for invalid signature, got %d", name, rec.Code)
		}
		if code := errorCode(t, rec); code != string(pkgerrors.CodeWebhookSignatureInvalid) {
			t.Fatalf("%s: unexpected code %s", name, code)
		}
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
	if len(store.data) != 0 {
		t.Fatalf("guard must not record unverified events: %v", store.data)
	}
}

func TestStripeWebhook_FailureReleasesGuard(t *testing.T) {
	payload, header := buildSignedEvent(t, stripe.EventTypeCheckoutSessionCompleted)
	service := &fakeStripeWebhookService{err: pkgerrors.New(pkgerrors.CodeReconciliationFailed, "insert purchase")}
	store := newInMemoryStore()
	handler := StripeWebhook(service, newVerifier(t), newGuard(t, store), nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if len(store.data) != 0 {
		t.Fatalf("guard key must be released after failure: %v", store.data)
	}

	service.err = nil
	service.outcome = stripewebhook.OutcomeReconciled
	rec = post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery to succeed, got %d", rec.Code)
	}
	if service.calls != 2 {
		t.Fatalf("expected redelivery to be handled, calls=%d", service.calls)
	}
}

func TestStripeWebhook_GuardOutageFallsThrough(t *testing.T) {
	payload, header := buildSignedEvent(t, stripe.EventTypeCheckoutSessionCompleted)
	service := &fakeStripeWebhookService{outcome: stripewebhook.OutcomeAlreadyReconciled}
	store := newInMemoryStore()
	store.setErr = errors.New("redis: connection refused")
	handler := StripeWebhook(service, newVerifier(t), newGuard(t, store), nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if service.calls != 1 {
		t.Fatalf("expected event handled without guard, calls=%d", service.calls)
	}
}

func TestStripeWebhook_WithoutGuard(t *testing.T) {
	payload, header := buildSignedEvent(t, stripe.EventTypeCustomerCreated)
	service := &fakeStripeWebhookService{outcome: stripewebhook.OutcomeIgnored}
	handler := StripeWebhook(service, newVerifier(t), nil, nil)

	for i := 0; i < 2; i++ {
		if rec := post(handler, payload, header); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if service.calls != 2 {
		t.Fatalf("expected both deliveries handled, calls=%d", service.calls)
	}
}

func TestStripeWebhook_RejectsOversizedPayload(t *testing.T) {
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, newVerifier(t), nil, nil)

	payload := bytes.Repeat([]byte("a"), MaxPayloadBytes+1)
	rec := post(handler, payload, buildStripeSignatureHeader(payload, testSecret, time.Now().Unix()))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatal("service should not be invoked")
	}
}

func TestStripeWebhook_FailsClosedWithoutVerifier(t *testing.T) {
	payload, header := buildSignedEvent(t, stripe.EventTypeCheckoutSessionCompleted)
	var verifier *stripeclient.WebhookVerifier
	handler := StripeWebhook(&fakeStripeWebhookService{}, verifier, nil, nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func buildSignedEvent(t *testing.T, eventType stripe.EventType) ([]byte, string) {
	t.Helper()
	session := &stripe.CheckoutSession{
		ID:                "cs_test_" + uuid.NewString(),
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: uuid.NewString(),
		AmountTotal:       50,
		Metadata: map[string]string{
			"collectible_id": uuid.NewString(),
			"item_name":      "Art #1",
		},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       eventType,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	header := buildStripeSignatureHeader(payload, testSecret, time.Now().Unix())
	return payload, header
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	calls   int
	outcome stripewebhook.Outcome
	err     error
}

func (f *fakeStripeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}

type inMemoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) WebhookEventKey(provider, eventID string) string {
	return fmt.Sprintf("collectibles:webhook:%s:%s", provider, eventID)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
