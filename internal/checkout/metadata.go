package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	metadataCollectibleID = "collectible_id"
	metadataItemName      = "item_name"
	metadataUnitPrice     = "unit_price"
)

// SessionMetadata is the closed set of keys attached to every checkout session
// so an outcome can be correlated back to the collectible that was bought.
type SessionMetadata struct {
	CollectibleID string
	ItemName      string
	// UnitPrice is the display price the purchase is recorded at. Zero when the
	// session predates the key.
	UnitPrice decimal.Decimal
}

func (m SessionMetadata) Map() map[string]string {
	out := map[string]string{
		metadataCollectibleID: m.CollectibleID,
		metadataItemName:      m.ItemName,
	}
	if !m.UnitPrice.IsZero() {
		out[metadataUnitPrice] = m.UnitPrice.String()
	}
	return out
}

// ParseSessionMetadata rejects metadata missing a required key.
func ParseSessionMetadata(raw map[string]string) (SessionMetadata, error) {
	meta := SessionMetadata{
		CollectibleID: strings.TrimSpace(raw[metadataCollectibleID]),
		ItemName:      strings.TrimSpace(raw[metadataItemName]),
	}
	if meta.CollectibleID == "" {
		return SessionMetadata{}, fmt.Errorf("session metadata missing %s", metadataCollectibleID)
	}
	if meta.ItemName == "" {
		return SessionMetadata{}, fmt.Errorf("session metadata missing %s", metadataItemName)
	}
	if v := strings.TrimSpace(raw[metadataUnitPrice]); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return SessionMetadata{}, fmt.Errorf("session metadata %s: %w", metadataUnitPrice, err)
		}
		meta.UnitPrice = price
	}
	return meta, nil
}
