package stripe

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

var ErrSigningSecretRequired = errors.New("stripe webhook signing secret is required")

// WebhookVerifier checks delivery signatures with the endpoint's signing secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSigningSecretRequired
	}
	return &WebhookVerifier{secret: secret}, nil
}

// Verify authenticates payload against the signature header and decodes the
// event. API version mismatches are tolerated because handlers read only the
// fields they need from data.object.
func (v *WebhookVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, ErrSigningSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
