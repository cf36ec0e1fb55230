package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_idempotency_key_key"}

	if !IsUniqueViolation(err, "transactions_idempotency_key_key") {
		t.Fatalf("expected match on named constraint")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("empty constraint must match any unique violation")
	}
	if IsUniqueViolation(err, "other_key") {
		t.Fatalf("must not match a different constraint")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Fatalf("plain errors are not unique violations")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil is not a unique violation")
	}

	wrapped := fmt.Errorf("insert: %w", err)
	if !IsUniqueViolation(wrapped, "transactions_idempotency_key_key") {
		t.Fatalf("must match through wrapping")
	}
}

func TestFromPg(t *testing.T) {
	check := &pgconn.PgError{Code: "23514", ConstraintName: "wallets_balance_nonnegative"}
	out := FromPg(check)
	if !IsKind(out, KindConstraintViolation) {
		t.Fatalf("check violation must become ConstraintViolation, got %v", out)
	}

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "wallets_owner_asset_key"}
	out = FromPg(unique)
	if !IsKind(out, KindConflict) {
		t.Fatalf("unique violation must become Conflict, got %v", out)
	}

	outOfRange := &pgconn.PgError{Code: "22003"}
	out = FromPg(outOfRange)
	if !IsKind(out, KindConstraintViolation) {
		t.Fatalf("numeric overflow must become ConstraintViolation, got %v", out)
	}

	plain := errors.New("connection reset")
	if FromPg(plain) != plain {
		t.Fatalf("non-pg errors must pass through unchanged")
	}
	if FromPg(nil) != nil {
		t.Fatalf("nil must pass through")
	}
}
