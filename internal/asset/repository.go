package asset

import (
	"context"
	"database/sql"
	"errors"

	"ledger-platform/internal/apperror"
)

func listTypes(ctx context.Context, db *sql.DB) ([]Type, error) {
	const q = `
SELECT id, name, symbol, description, is_active, created_at, updated_at
FROM asset_types
ORDER BY symbol
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Type{}
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Name, &t.Symbol, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func getType(ctx context.Context, db *sql.DB, id string) (Type, error) {
	const q = `
SELECT id, name, symbol, description, is_active, created_at, updated_at
FROM asset_types
WHERE id = $1
`
	var t Type
	if err := db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.Name, &t.Symbol, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Type{}, apperror.NotFound("asset type")
		}
		return Type{}, err
	}
	return t, nil
}

func insertType(ctx context.Context, db *sql.DB, t Type) error {
	const q = `
INSERT INTO asset_types (id, name, symbol, description, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := db.ExecContext(ctx, q, t.ID, t.Name, t.Symbol, t.Description, t.IsActive, t.CreatedAt, t.UpdatedAt)
	return apperror.FromPg(err)
}
