// Package dbtest opens throwaway SQLite databases carrying the marketplace schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE collectibles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		rarity TEXT NOT NULL DEFAULT '',
		image_url TEXT,
		user_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE market_orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		collectible_id TEXT NOT NULL,
		order_type TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		price NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		stripe_session_id TEXT,
		expires_at DATETIME NOT NULL,
		completed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		collectible_id TEXT NOT NULL,
		order_id TEXT,
		amount NUMERIC NOT NULL,
		stripe_session_id TEXT,
		hint_key TEXT,
		status TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_purchases_stripe_session_id ON purchases (stripe_session_id)`,
	`CREATE UNIQUE INDEX ux_purchases_hint_key ON purchases (hint_key)`,
	`CREATE TABLE user_collectibles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		collectible_id TEXT NOT NULL,
		purchase_price NUMERIC NOT NULL,
		purchased_at DATETIME NOT NULL
	)`,
	`CREATE TABLE user_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE trades (
		id TEXT PRIMARY KEY,
		buyer_id TEXT,
		seller_id TEXT,
		collectible_id TEXT NOT NULL,
		order_id TEXT,
		price NUMERIC NOT NULL,
		trade_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME,
		completed_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_trades_order_id ON trades (order_id)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a private in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
