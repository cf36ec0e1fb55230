package ledger

import (
	"context"
	"database/sql"
	"testing"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/money"
	"ledger-platform/internal/wallet"
)

// The flow template itself is Postgres-specific (FOR UPDATE pair
// locking, partial unique index on the idempotency key), so its
// end-to-end behavior belongs to integration tests against Postgres.
// What we unit-test here without a DB:
// - request validation for all three flows
// - the shared pair assertions (active, asset match, funds, distinct)
// - debit/credit role resolution per flow policy

const (
	idAlice    = "5f4f5c22-42d4-4f21-9387-8c3e1fbd8f30"
	idTreasury = "a0b49c63-2c14-45ce-8e2b-0a9d6f8e2a01"
	idRevenue  = "c81f2a0e-73df-4db8-8673-0d5b7a2f43aa"
)

func TestTopup_RejectsInvalidArgs(t *testing.T) {
	svc := NewService((*sql.DB)(nil))

	_, err := svc.Topup(context.Background(), "k", TopupRequest{
		WalletID:       "not-a-uuid",
		SystemWalletID: idTreasury,
		Amount:         money.MustParse("100"),
		ReferenceID:    "stripe-111",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Topup(context.Background(), "k", TopupRequest{
		WalletID:       idAlice,
		SystemWalletID: idTreasury,
		Amount:         money.MustParse("100"),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("missing referenceId must fail validation, got %v", err)
	}

	_, err = svc.Topup(context.Background(), "k", TopupRequest{
		WalletID:       idAlice,
		SystemWalletID: idAlice,
		Amount:         money.MustParse("100"),
		ReferenceID:    "r",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("identical wallets must fail validation, got %v", err)
	}

	_, err = svc.Topup(context.Background(), "k", TopupRequest{
		WalletID:       idAlice,
		SystemWalletID: idTreasury,
		Amount:         money.Zero(),
		ReferenceID:    "r",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("zero amount must fail validation, got %v", err)
	}
}

func TestBonus_RejectsMissingReason(t *testing.T) {
	svc := NewService((*sql.DB)(nil))

	_, err := svc.Bonus(context.Background(), "k", BonusRequest{
		WalletID:       idAlice,
		SystemWalletID: idTreasury,
		Amount:         money.MustParse("50"),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSpend_RejectsMissingServiceID(t *testing.T) {
	svc := NewService((*sql.DB)(nil))

	_, err := svc.Spend(context.Background(), "k", SpendRequest{
		WalletID:       idAlice,
		SystemWalletID: idRevenue,
		Amount:         money.MustParse("60"),
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidatePair(t *testing.T) {
	active := func(id, asset, balance string) wallet.Wallet {
		return wallet.Wallet{ID: id, AssetTypeID: asset, Balance: money.MustParse(balance), IsActive: true}
	}

	src := active(idTreasury, "asset-1", "1000000")
	dst := active(idAlice, "asset-1", "500")

	if err := validatePair(src, dst, money.MustParse("100")); err != nil {
		t.Fatalf("valid pair must pass, got %v", err)
	}

	// balance exactly equals amount: allowed, balance may reach zero.
	if err := validatePair(active(idAlice, "asset-1", "60"), dst, money.MustParse("60")); err != nil {
		t.Fatalf("exact balance must pass, got %v", err)
	}

	err := validatePair(active(idAlice, "asset-1", "600"), dst, money.MustParse("9999"))
	if !apperror.IsKind(err, apperror.KindInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	e, _ := apperror.As(err)
	d := e.Details.(map[string]string)
	if d["available"] != "600" || d["required"] != "9999" {
		t.Fatalf("unexpected details: %v", d)
	}

	inactive := active(idTreasury, "asset-1", "1000")
	inactive.IsActive = false
	if err := validatePair(inactive, dst, money.MustParse("1")); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("inactive source must conflict, got %v", err)
	}
	if err := validatePair(src, inactive, money.MustParse("1")); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("inactive target must conflict, got %v", err)
	}

	other := active(idAlice, "asset-2", "500")
	if err := validatePair(src, other, money.MustParse("1")); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("asset mismatch must conflict, got %v", err)
	}

	if err := validatePair(src, src, money.MustParse("1")); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("identical wallets must fail, got %v", err)
	}

	if err := validatePair(src, dst, money.Zero()); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("non-positive amount must fail, got %v", err)
	}
}

func TestResolveRoles(t *testing.T) {
	user := wallet.Wallet{ID: idAlice}
	system := wallet.Wallet{ID: idTreasury}
	locked := map[string]wallet.Wallet{idAlice: user, idTreasury: system}

	// topup/bonus policy: system wallet is the debit source.
	src, tgt, err := resolveRoles(locked, flowSpec{
		userWalletID:   idAlice,
		systemWalletID: idTreasury,
		debitWalletID:  idTreasury,
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if src.ID != idTreasury || tgt.ID != idAlice {
		t.Fatalf("topup roles wrong: src=%s tgt=%s", src.ID, tgt.ID)
	}

	// spend policy: user wallet is the debit source.
	src, tgt, err = resolveRoles(locked, flowSpec{
		userWalletID:   idAlice,
		systemWalletID: idTreasury,
		debitWalletID:  idAlice,
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if src.ID != idAlice || tgt.ID != idTreasury {
		t.Fatalf("spend roles wrong: src=%s tgt=%s", src.ID, tgt.ID)
	}

	// a missing row surfaces as NotFound.
	_, _, err = resolveRoles(map[string]wallet.Wallet{idAlice: user}, flowSpec{
		userWalletID:   idAlice,
		systemWalletID: idTreasury,
		debitWalletID:  idTreasury,
	})
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFlowMetadataPromotion(t *testing.T) {
	meta := cloneMetadata(map[string]any{"campaign": "summer"})
	meta["reason"] = "referral"
	if meta["campaign"] != "summer" || meta["reason"] != "referral" {
		t.Fatalf("unexpected metadata: %v", meta)
	}

	// cloneMetadata must not alias the caller's map.
	orig := map[string]any{"a": 1}
	clone := cloneMetadata(orig)
	clone["b"] = 2
	if _, ok := orig["b"]; ok {
		t.Fatalf("clone aliased the original map")
	}
}
