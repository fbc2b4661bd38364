package enums

import "fmt"

// OrderType is the kind of order a user places on the simulated book.
type OrderType string

const (
	OrderTypeBuy    OrderType = "buy"
	OrderTypeSell   OrderType = "sell"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

var validOrderTypes = []OrderType{
	OrderTypeBuy,
	OrderTypeSell,
	OrderTypeLimit,
	OrderTypeMarket,
}

func (t OrderType) String() string {
	return string(t)
}

func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) String() string {
	return string(s)
}

func (s OrderSide) IsValid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// ParseOrderSide converts raw input into an OrderSide.
func ParseOrderSide(value string) (OrderSide, error) {
	side := OrderSide(value)
	if !side.IsValid() {
		return "", fmt.Errorf("invalid order side %q", value)
	}
	return side, nil
}

// SideFor derives the side implied by an order type. Limit and market orders
// carry an explicit side, so ok is false for them.
func SideFor(t OrderType) (side OrderSide, ok bool) {
	switch t {
	case OrderTypeBuy:
		return OrderSideBuy, true
	case OrderTypeSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}
