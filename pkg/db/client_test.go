package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/collectibles-backend/pkg/config"
)

type ledgerRow struct {
	ID   int
	Memo string
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	client, err := New(context.Background(), config.DBConfig{DSN: dsn, MaxOpenConns: 1}, true, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}

func countRows(t *testing.T, client *Client) int64 {
	t.Helper()
	var count int64
	if err := client.DB().Model(&ledgerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, true, nil); err == nil {
		t.Fatal("expected an error for an empty DSN")
	}
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Memo: "purchase recorded"}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := countRows(t, client); got != 1 {
		t.Fatalf("expected 1 row after commit, got %d", got)
	}

	errBoom := errors.New("ownership grant failed")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Memo: "half applied"}).Error; err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if got := countRows(t, client); got != 1 {
		t.Fatalf("expected rollback to leave 1 row, got %d", got)
	}
}

func TestWithTxRollsBackAndRepanics(t *testing.T) {
	client := newTestClient(t)

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("expected panic to propagate, got %v", r)
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&ledgerRow{Memo: "never kept"})
			panic("boom")
		})
	}()

	if got := countRows(t, client); got != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", got)
	}
}

func TestExecAndRaw(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.Exec(ctx, "INSERT INTO ledger_rows (memo) VALUES (?)", "raw insert").Error; err != nil {
		t.Fatalf("exec: %v", err)
	}
	var memo string
	if err := client.Raw(ctx, "SELECT memo FROM ledger_rows LIMIT 1").Scan(&memo).Error; err != nil {
		t.Fatalf("raw: %v", err)
	}
	if memo != "raw insert" {
		t.Fatalf("unexpected memo %q", memo)
	}
}

func TestPingAfterClose(t *testing.T) {
	client := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail on a closed pool")
	}
}
