package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/collectibles-backend/internal/checkout"
	"github.com/angelmondragon/collectibles-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/collectibles-backend/pkg/errors"
)

// ErrUnattributed marks a paid session that carries no usable user id.
var ErrUnattributed = errors.New("checkout session has no user reference")

// SignalFromSession builds a reconciliation signal from a confirmed session.
// The buyer comes from the session's client reference.
func SignalFromSession(sess checkout.ConfirmedSession, source enums.PurchaseSource) (Signal, error) {
	userID, err := uuid.Parse(strings.TrimSpace(sess.UserID))
	if err != nil || userID == uuid.Nil {
		return Signal{}, ErrUnattributed
	}
	collectibleID, err := uuid.Parse(sess.Metadata.CollectibleID)
	if err != nil {
		return Signal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "session collectible id is not a catalog id")
	}
	return Signal{
		SessionID:     sess.ID,
		UserID:        userID,
		CollectibleID: collectibleID,
		ItemName:      sess.Metadata.ItemName,
		Amount:        sess.PurchaseAmount(),
		Source:        source,
	}, nil
}

// hintKey scopes a hint's idempotency key to its user. A client-supplied key
// is hashed as is; without one the hint is keyed by what it claims was bought.
func hintKey(sig Signal) string {
	parts := []string{sig.UserID.String()}
	if key := strings.TrimSpace(sig.IdempotencyKey); key != "" {
		parts = append(parts, "key", key)
	} else {
		parts = append(parts, "item", sig.CollectibleID.String(), sig.Amount.String())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
