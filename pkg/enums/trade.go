package enums

import "fmt"

// TradeStatus tracks a trade between a buyer and a seller.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

var validTradeStatuses = []TradeStatus{
	TradeStatusPending,
	TradeStatusCompleted,
	TradeStatusCancelled,
}

func (s TradeStatus) String() string {
	return string(s)
}

func (s TradeStatus) IsValid() bool {
	for _, candidate := range validTradeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTradeStatus converts raw input into a TradeStatus.
func ParseTradeStatus(value string) (TradeStatus, error) {
	for _, candidate := range validTradeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trade status %q", value)
}

// TradeType is the side the initiating user took.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

func (t TradeType) IsValid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// TradeTypeFor maps an order side onto the trade it opens.
func TradeTypeFor(side OrderSide) TradeType {
	if side == OrderSideSell {
		return TradeTypeSell
	}
	return TradeTypeBuy
}
