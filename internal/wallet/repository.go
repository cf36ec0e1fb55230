package wallet

import (
	"context"
	"database/sql"
	"errors"

	"ledger-platform/internal/apperror"
)

func getWallet(ctx context.Context, db *sql.DB, id string) (Wallet, error) {
	const q = `
SELECT id, owner_id, owner_type, asset_type_id, balance, is_active, name, created_at, updated_at
FROM wallets
WHERE id = $1
`
	var w Wallet
	if err := db.QueryRowContext(ctx, q, id).Scan(
		&w.ID,
		&w.OwnerID,
		&w.OwnerType,
		&w.AssetTypeID,
		&w.Balance,
		&w.IsActive,
		&w.Name,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, apperror.NotFound("wallet")
		}
		return Wallet{}, err
	}
	return w, nil
}

func listWallets(ctx context.Context, db *sql.DB, ownerType string, limit, offset int) ([]Wallet, int, error) {
	// Filter and count share the WHERE clause; empty ownerType means all.
	const qCount = `
SELECT COUNT(*)
FROM wallets
WHERE ($1 = '' OR owner_type = $1)
`
	var total int
	if err := db.QueryRowContext(ctx, qCount, ownerType).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
SELECT id, owner_id, owner_type, asset_type_id, balance, is_active, name, created_at, updated_at
FROM wallets
WHERE ($1 = '' OR owner_type = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`
	rows, err := db.QueryContext(ctx, q, ownerType, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Wallet{}
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.OwnerType, &w.AssetTypeID, &w.Balance,
			&w.IsActive, &w.Name, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func getBalanceView(ctx context.Context, db *sql.DB, id string) (BalanceView, error) {
	const q = `
SELECT w.id, w.asset_type_id, a.symbol, w.balance, w.updated_at
FROM wallets w
JOIN asset_types a ON a.id = w.asset_type_id
WHERE w.id = $1
`
	var v BalanceView
	if err := db.QueryRowContext(ctx, q, id).Scan(
		&v.WalletID,
		&v.AssetTypeID,
		&v.AssetSymbol,
		&v.Balance,
		&v.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BalanceView{}, apperror.NotFound("wallet")
		}
		return BalanceView{}, err
	}
	return v, nil
}

func insertWallet(ctx context.Context, db *sql.DB, w Wallet) error {
	const q = `
INSERT INTO wallets (id, owner_id, owner_type, asset_type_id, balance, is_active, name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := db.ExecContext(ctx, q,
		w.ID,
		w.OwnerID,
		w.OwnerType,
		w.AssetTypeID,
		w.Balance,
		w.IsActive,
		w.Name,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if apperror.IsUniqueViolation(err, "wallets_owner_asset_key") {
		return apperror.Conflict("wallet already exists for this owner and asset type")
	}
	return apperror.FromPg(err)
}

func walletExists(ctx context.Context, db *sql.DB, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`
	var ok bool
	if err := db.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
