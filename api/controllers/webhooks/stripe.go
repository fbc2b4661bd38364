package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/collectibles-backend/api/responses"
	stripewebhook "github.com/angelmondragon/collectibles-backend/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
	stripeclient "github.com/angelmondragon/collectibles-backend/pkg/stripe"
	"github.com/stripe/stripe-go/v84"
)

// MaxPayloadBytes caps webhook bodies; Stripe events are far smaller.
const MaxPayloadBytes = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type signatureVerifier interface {
	Verify(payload []byte, signatureHeader string) (stripe.Event, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// StripeWebhook verifies a delivery, skips replays, and hands checkout events to
// the webhook service. Anything other than a handling failure is acknowledged.
func StripeWebhook(svc StripeWebhookService, verifier signatureVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "webhook signing secret not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get(stripeclient.SignatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeWebhookSignatureInvalid, "stripe signature missing"))
			return
		}

		event, err := verifier.Verify(payload, sigHeader)
		if err != nil {
			if errors.Is(err, stripeclient.ErrSigningSecretRequired) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook signing secret not configured"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeWebhookSignatureInvalid, err, "verify signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		claimed := true
		if guard != nil {
			first, err := guard.Claim(ctx, event.ID)
			switch {
			case err != nil:
				// The store's unique index still deduplicates; carry on without the fast path.
				if logg != nil {
					logg.WarnErr(ctx, "webhook event guard unavailable", err)
				}
				claimed = false
			case !first:
				if logg != nil {
					logg.Info(ctx, "stripe event replay skipped")
				}
				responses.WriteJSON(w, http.StatusOK, receivedResponse{Received: true})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			if guard != nil && claimed {
				if relErr := guard.Release(ctx, event.ID); relErr != nil && logg != nil {
					logg.WarnErr(ctx, "webhook event guard release failed", relErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(outcome)), "stripe event processed")
		}
		responses.WriteJSON(w, http.StatusOK, receivedResponse{Received: true})
	}
}
