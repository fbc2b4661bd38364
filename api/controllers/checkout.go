package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/collectibles-backend/api/middleware"
	"github.com/angelmondragon/collectibles-backend/api/responses"
	"github.com/angelmondragon/collectibles-backend/api/validators"
	"github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/internal/collectibles"
	"github.com/angelmondragon/collectibles-backend/internal/purchases"
	"github.com/angelmondragon/collectibles-backend/internal/reconcile"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
	"github.com/angelmondragon/collectibles-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type createCheckoutSessionRequest struct {
	Item       *checkoutItemRequest `json:"item"`
	SuccessURL string               `json:"successUrl"`
	CancelURL  string               `json:"cancelUrl"`
}

type createCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateCheckoutSession starts a hosted checkout for one catalog item. Nothing
// is persisted; the purchase only exists once the payment is confirmed. An item
// id that is not in the catalog is refused before the processor is called, so
// every paid session can be attributed.
func CreateCheckoutSession(svc checkout.Service, catalog catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured"))
			return
		}
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable"))
			return
		}

		var req createCheckoutSessionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Item == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInvalidItem, "item is required").
				WithDetails(map[string]any{"field": "item"}))
			return
		}
		itemID, err := catalogItemID(r.Context(), catalog, req.Item.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent := checkout.Intent{
			Item: checkout.Item{
				ID:    itemID.String(),
				Name:  validators.SanitizeString(req.Item.Name, 250),
				Price: req.Item.Price,
			},
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
			Origin:     r.Header.Get("Origin"),
		}
		if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
			intent.UserID = &userID
		}

		sess, err := svc.CreateSession(r.Context(), intent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, createCheckoutSessionResponse{SessionID: sess.ID})
	}
}

func catalogItemID(ctx context.Context, catalog catalogReader, rawID string) (uuid.UUID, error) {
	invalid := pkgerrors.New(pkgerrors.CodeInvalidItem, "item id must reference a catalog collectible").
		WithDetails(map[string]any{"field": "item.id"})
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalid
	}
	if _, err := catalog.Get(ctx, id); err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return uuid.Nil, invalid
		}
		return uuid.Nil, err
	}
	return id, nil
}

type confirmCheckoutRequest struct {
	SessionID     string          `json:"sessionId"`
	Payment       string          `json:"payment"`
	Trade         string          `json:"trade"`
	Item          string          `json:"item"`
	CollectibleID string          `json:"collectibleId"`
	Amount        decimal.Decimal `json:"amount"`
}

const confirmPending = "pending"

// idempotencyKeyHeader lets a client retry a session-less hint without
// recording it twice.
const idempotencyKeyHeader = "Idempotency-Key"

type confirmCheckoutResponse struct {
	Status     string     `json:"status"`
	PurchaseID *uuid.UUID `json:"purchaseId,omitempty"`
	OrderID    *uuid.UUID `json:"orderId,omitempty"`
}

type catalogReader interface {
	Get(ctx context.Context, id uuid.UUID) (*collectibles.CollectibleView, error)
}

// ConfirmCheckout reconciles the buyer's return from hosted checkout. With a
// session id the session is fetched from the processor and only a paid session
// is reconciled; without one a success hint for a collectible goes through the
// fallback path. The UI navigates once this responds.
func ConfirmCheckout(svc checkout.Service, reconciler reconcile.Service, catalog catalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "reconciliation unavailable"))
			return
		}

		userID, ok := middleware.UserUUIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req confirmCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var (
			sig reconcile.Signal
			err error
		)
		if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
			if svc == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured"))
				return
			}
			var confirmed checkout.ConfirmedSession
			confirmed, err = svc.ConfirmSession(ctx, sessionID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !confirmed.Paid {
				responses.WriteJSON(w, http.StatusOK, confirmCheckoutResponse{Status: confirmPending})
				return
			}
			sig, err = signalFromConfirmedSession(confirmed, userID)
		} else {
			sig, err = signalFromHint(ctx, req, userID, catalog)
			sig.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := reconciler.Reconcile(ctx, sig)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := confirmCheckoutResponse{Status: string(result.Status), OrderID: result.OrderID}
		if result.PurchaseID != uuid.Nil {
			id := result.PurchaseID
			resp.PurchaseID = &id
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

// signalFromConfirmedSession attributes a paid session to the caller. A session
// started anonymously belongs to whoever confirms it; one started by another
// user is refused.
func signalFromConfirmedSession(confirmed checkout.ConfirmedSession, userID uuid.UUID) (reconcile.Signal, error) {
	owner := strings.TrimSpace(confirmed.UserID)
	if owner == "" {
		confirmed.UserID = userID.String()
	} else if owner != userID.String() {
		return reconcile.Signal{}, pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to another user")
	}
	sig, err := reconcile.SignalFromSession(confirmed, enums.PurchaseSourceRedirect)
	if err != nil {
		return reconcile.Signal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session cannot be attributed")
	}
	return sig, nil
}

func signalFromHint(ctx context.Context, req confirmCheckoutRequest, userID uuid.UUID, catalog catalogReader) (reconcile.Signal, error) {
	if !isSuccessHint(req.Payment) && !isSuccessHint(req.Trade) {
		return reconcile.Signal{}, pkgerrors.New(pkgerrors.CodeValidation, "sessionId or a success indicator is required")
	}
	collectibleID, err := validators.ParseUUID(req.CollectibleID, "collectibleId")
	if err != nil {
		return reconcile.Signal{}, err
	}
	if req.Amount.IsNegative() {
		return reconcile.Signal{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative").
			WithDetails(map[string]any{"field": "amount"})
	}

	sig := reconcile.Signal{
		UserID:        userID,
		CollectibleID: collectibleID,
		ItemName:      strings.TrimSpace(req.Item),
		Amount:        req.Amount,
		Source:        enums.PurchaseSourceRedirect,
	}
	if catalog != nil && (sig.Amount.IsZero() || sig.ItemName == "") {
		item, err := catalog.Get(ctx, collectibleID)
		if err != nil {
			return reconcile.Signal{}, err
		}
		if sig.Amount.IsZero() {
			sig.Amount = item.Price
		}
		if sig.ItemName == "" {
			sig.ItemName = item.Title
		}
	}
	return sig, nil
}

func isSuccessHint(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "success")
}

// CheckoutSessionStatus returns the reconciled purchase for a session owned by
// the caller, or 404 while it is unreconciled.
func CheckoutSessionStatus(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "purchases unavailable"))
			return
		}
		userID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		purchase, err := svc.GetBySession(r.Context(), userID, chi.URLParam(r, "sessionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, purchase)
	}
}
