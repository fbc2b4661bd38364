package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/collectibles-backend/pkg/enums"
)

func TestMarketOrderEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	active := MarketOrder{Status: enums.OrderStatusActive, ExpiresAt: now.Add(time.Minute)}
	assert.Equal(t, enums.OrderStatusActive, active.EffectiveStatus(now))

	lapsed := MarketOrder{Status: enums.OrderStatusActive, ExpiresAt: now}
	assert.Equal(t, enums.OrderStatusExpired, lapsed.EffectiveStatus(now))

	completed := MarketOrder{Status: enums.OrderStatusCompleted, ExpiresAt: now.Add(-time.Hour)}
	assert.Equal(t, enums.OrderStatusCompleted, completed.EffectiveStatus(now))
}

func TestNewIDSortsInCreationOrder(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		next := NewID()
		assert.Equal(t, 7, int(next.Version()))
		assert.Less(t, prev.String(), next.String())
		prev = next
	}
}
