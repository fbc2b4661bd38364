package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCapturesPgxFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_purchases_stripe_session_id", TableName: "purchases"}
	err := Wrap(CodeReconciliationFailed, fmt.Errorf("insert purchase: %w", pgErr), "reconcile")

	d := Dump(err)
	if d.Code != CodeReconciliationFailed {
		t.Fatalf("expected code to be captured, got %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_purchases_stripe_session_id" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
}

func TestDumpCapturesPqFields(t *testing.T) {
	err := fmt.Errorf("exec: %w", &pq.Error{Code: "23514", Table: "market_orders", Message: "check violation"})

	d := Dump(err)
	if d.PGCode != "23514" || d.PGTable != "market_orders" {
		t.Fatalf("unexpected pq fields %+v", d)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}

func TestDumpFieldsSkipEmptyValues(t *testing.T) {
	err := Wrap(CodeDependency, fmt.Errorf("dial: %w", &pgconn.PgError{Code: "08006"}), "db down")

	fields := Dump(err).Fields()
	if fields["error_code"] != CodeDependency {
		t.Fatalf("expected error_code, got %v", fields["error_code"])
	}
	if fields["retryable"] != true {
		t.Fatalf("expected dependency errors to be retryable")
	}
	if fields["pg_code"] != "08006" {
		t.Fatalf("expected pg_code, got %v", fields["pg_code"])
	}
	if _, ok := fields["pg_table"]; ok {
		t.Fatalf("empty pg_table must be omitted")
	}

	plain := Dump(fmt.Errorf("boom")).Fields()
	if _, ok := plain["error_code"]; ok {
		t.Fatalf("untyped errors carry no code")
	}
	if _, ok := plain["error_chain"]; ok {
		t.Fatalf("single-link chains are omitted")
	}
}
