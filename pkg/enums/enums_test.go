package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("active")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusActive, status)
	assert.False(t, status.IsTerminal())

	_, err = ParseOrderStatus("filled")
	assert.Error(t, err)

	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusExpired} {
		assert.True(t, s.IsTerminal(), s.String())
	}
}

func TestParseOrderType(t *testing.T) {
	for _, raw := range []string{"buy", "sell", "limit", "market"} {
		typ, err := ParseOrderType(raw)
		require.NoError(t, err)
		assert.True(t, typ.IsValid())
	}
	_, err := ParseOrderType("stop")
	assert.Error(t, err)
}

func TestSideFor(t *testing.T) {
	side, ok := SideFor(OrderTypeBuy)
	assert.True(t, ok)
	assert.Equal(t, OrderSideBuy, side)

	side, ok = SideFor(OrderTypeSell)
	assert.True(t, ok)
	assert.Equal(t, OrderSideSell, side)

	_, ok = SideFor(OrderTypeLimit)
	assert.False(t, ok)
	_, ok = SideFor(OrderTypeMarket)
	assert.False(t, ok)
}

func TestParseCurrencyIgnoresCase(t *testing.T) {
	c, err := ParseCurrency(" USD ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, c)

	_, err = ParseCurrency("eth")
	assert.Error(t, err)
}

func TestOutboxEnums(t *testing.T) {
	evt, err := ParseOutboxEventType("purchase_completed")
	require.NoError(t, err)
	assert.Equal(t, EventPurchaseCompleted, evt)

	agg, err := ParseOutboxAggregateType("market_order")
	require.NoError(t, err)
	assert.Equal(t, AggregateMarketOrder, agg)

	assert.False(t, OutboxEventType("order_shipped").IsValid())
}

func TestParseTradeStatus(t *testing.T) {
	for _, raw := range []string{"pending", "completed", "cancelled"} {
		status, err := ParseTradeStatus(raw)
		require.NoError(t, err)
		assert.True(t, status.IsValid())
	}
	_, err := ParseTradeStatus("expired")
	assert.Error(t, err)

	assert.Equal(t, TradeTypeSell, TradeTypeFor(OrderSideSell))
	assert.Equal(t, TradeTypeBuy, TradeTypeFor(OrderSideBuy))
	assert.False(t, TradeType("swap").IsValid())
}

func TestPurchaseSourceIsValid(t *testing.T) {
	assert.True(t, PurchaseSourceRedirect.IsValid())
	assert.True(t, PurchaseSourceWebhook.IsValid())
	assert.False(t, PurchaseSource("direct").IsValid())
}
