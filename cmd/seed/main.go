// Command seed provisions the demo dataset: the TC asset type, the
// three system wallets (treasury, revenue, bonus pool) and two user
// wallets. Reruns are no-ops; rows are keyed on (owner_id, asset_type).
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	"ledger-platform/internal/config"
	"ledger-platform/internal/money"
	"ledger-platform/pkg/logger"
	"ledger-platform/pkg/utils"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type seedWallet struct {
	ownerID   string
	ownerType string
	name      string
	balance   money.Amount
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := run(ctx, db, log); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	return utils.WithTx(ctx, db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		assetID, err := ensureAssetType(ctx, tx, "Test Credits", "TC")
		if err != nil {
			return err
		}

		wallets := []seedWallet{
			{ownerID: "system:treasury", ownerType: "system", name: "Treasury", balance: money.MustParse("1000000")},
			{ownerID: "system:revenue", ownerType: "system", name: "Revenue", balance: money.Zero()},
			{ownerID: "system:bonus", ownerType: "system", name: "Bonus Pool", balance: money.MustParse("500000")},
			{ownerID: "user:alice", ownerType: "user", name: "Alice", balance: money.MustParse("500")},
			{ownerID: "user:bob", ownerType: "user", name: "Bob", balance: money.MustParse("100")},
		}
		for _, w := range wallets {
			id, created, err := ensureWallet(ctx, tx, assetID, w)
			if err != nil {
				return err
			}
			if created {
				log.Info("seeded wallet", "owner", w.ownerID, "id", id, "balance", w.balance.String())
			}
		}
		return nil
	})
}

func ensureAssetType(ctx context.Context, tx *sql.Tx, name, symbol string) (string, error) {
	const q = `
INSERT INTO asset_types (id, name, symbol, description, is_active)
VALUES ($1, $2, $3, 'seeded asset', TRUE)
ON CONFLICT (symbol) DO UPDATE SET updated_at = now()
RETURNING id
`
	var id string
	err := tx.QueryRowContext(ctx, q, uuid.NewString(), name, symbol).Scan(&id)
	return id, err
}

func ensureWallet(ctx context.Context, tx *sql.Tx, assetID string, w seedWallet) (string, bool, error) {
	const qExisting = `SELECT id FROM wallets WHERE owner_id = $1 AND asset_type_id = $2`
	var id string
	err := tx.QueryRowContext(ctx, qExisting, w.ownerID, assetID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, err
	}

	const qInsert = `
INSERT INTO wallets (id, owner_id, owner_type, asset_type_id, balance, is_active, name)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
RETURNING id
`
	err = tx.QueryRowContext(ctx, qInsert, uuid.NewString(), w.ownerID, w.ownerType, assetID, w.balance, w.name).Scan(&id)
	return id, true, err
}
