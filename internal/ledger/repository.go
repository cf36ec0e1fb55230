package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/money"
	"ledger-platform/internal/wallet"
)

// Constraint names from migrations that repositories match on.
const (
	constraintIdempotencyKey = "transactions_idempotency_key_key"
)

// errDuplicateIdempotencyKey signals that another request holding the
// same idempotency key committed its transaction row first. The flow
// engine aborts the losing store transaction and re-reads the winner.
var errDuplicateIdempotencyKey = errors.New("idempotency key already committed")

// lockWalletPair returns both wallet rows exclusively locked for the
// life of the enclosing transaction.
//
// The ORDER BY id inside the lock acquisition is load-bearing: the two
// ids arrive in whatever order the caller holds them, and the store
// imposes the canonical ascending order while locking. Any two
// concurrent flows touching overlapping wallets therefore acquire rows
// in the same sequence and no circular wait can form.
func lockWalletPair(ctx context.Context, tx *sql.Tx, idA, idB string) (map[string]wallet.Wallet, error) {
	const q = `
SELECT id, owner_id, owner_type, asset_type_id, balance, is_active, name, created_at, updated_at
FROM wallets
WHERE id IN ($1, $2)
ORDER BY id
FOR UPDATE
`
	rows, err := tx.QueryContext(ctx, q, idA, idB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]wallet.Wallet, 2)
	for rows.Next() {
		var w wallet.Wallet
		if err := rows.Scan(
			&w.ID, &w.OwnerID, &w.OwnerType, &w.AssetTypeID, &w.Balance,
			&w.IsActive, &w.Name, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) < 2 {
		return nil, apperror.NotFound("wallet")
	}
	return out, nil
}

// applyEntry posts a signed delta to a locked wallet row and records
// the matching ledger entry. balance_before comes from the locked
// in-memory snapshot; the exclusive lock makes a re-read equal to it.
// The store's non-negative balance check remains the last-line defense
// if the flow's own balance guard was ever bypassed.
func applyEntry(ctx context.Context, tx *sql.Tx, txID string, w wallet.Wallet, side Side, amount money.Amount, now time.Time) (Entry, error) {
	delta := amount
	if side == SideDebit {
		delta = money.Zero().Sub(amount)
	}

	const qUpdate = `
UPDATE wallets
SET balance = balance + $1, updated_at = $2
WHERE id = $3
`
	if _, err := tx.ExecContext(ctx, qUpdate, delta, now, w.ID); err != nil {
		return Entry{}, apperror.FromPg(err)
	}

	e := Entry{
		ID:            newID(),
		TransactionID: txID,
		WalletID:      w.ID,
		Side:          side,
		Amount:        amount,
		BalanceBefore: w.Balance,
		BalanceAfter:  w.Balance.Add(delta),
		CreatedAt:     now,
	}

	const qInsert = `
INSERT INTO ledger_entries (id, transaction_id, wallet_id, side, amount, balance_before, balance_after, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	if _, err := tx.ExecContext(ctx, qInsert,
		e.ID, e.TransactionID, e.WalletID, e.Side, e.Amount, e.BalanceBefore, e.BalanceAfter, e.CreatedAt,
	); err != nil {
		return Entry{}, apperror.FromPg(err)
	}
	return e, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	meta, err := marshalMetadata(t.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO transactions (id, kind, status, user_wallet_id, system_wallet_id, amount,
                          reference_id, idempotency_key, description, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err = tx.ExecContext(ctx, q,
		t.ID, t.Kind, t.Status, t.UserWalletID, t.SystemWalletID, t.Amount,
		t.ReferenceID, t.IdempotencyKey, t.Description, meta, t.CreatedAt, t.UpdatedAt,
	)
	if apperror.IsUniqueViolation(err, constraintIdempotencyKey) {
		return errDuplicateIdempotencyKey
	}
	return apperror.FromPg(err)
}

func markCompleted(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	const q = `
UPDATE transactions
SET status = 'completed', updated_at = $1
WHERE id = $2 AND status = 'pending'
`
	res, err := tx.ExecContext(ctx, q, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return apperror.Internal("transaction not pending at completion", nil)
	}
	return nil
}

// rowQuerier is the slice of *sql.DB / *sql.Tx shared by the duplicate
// lookups. Two explicit entry points below keep call sites honest about
// whether they run inside a store transaction.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const qTransactionByKey = `
SELECT id, kind, status, user_wallet_id, system_wallet_id, amount,
       reference_id, idempotency_key, description, metadata, created_at, updated_at
FROM transactions
WHERE idempotency_key = $1
`

func findByKey(ctx context.Context, db *sql.DB, key string) (Transaction, bool, error) {
	return scanTransactionRow(db.QueryRowContext(ctx, qTransactionByKey, key))
}

func findByKeyTx(ctx context.Context, tx *sql.Tx, key string) (Transaction, bool, error) {
	return scanTransactionRow(tx.QueryRowContext(ctx, qTransactionByKey, key))
}

func scanTransactionRow(row *sql.Row) (Transaction, bool, error) {
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

func getTransaction(ctx context.Context, db *sql.DB, id string) (Transaction, error) {
	const q = `
SELECT id, kind, status, user_wallet_id, system_wallet_id, amount,
       reference_id, idempotency_key, description, metadata, created_at, updated_at
FROM transactions
WHERE id = $1
`
	t, err := scanTransaction(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, apperror.NotFound("transaction")
		}
		return Transaction{}, err
	}
	return t, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTransaction(row scannable) (Transaction, error) {
	var (
		t    Transaction
		meta []byte
	)
	if err := row.Scan(
		&t.ID, &t.Kind, &t.Status, &t.UserWalletID, &t.SystemWalletID, &t.Amount,
		&t.ReferenceID, &t.IdempotencyKey, &t.Description, &meta, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return Transaction{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

// querier is the query slice of *sql.DB / *sql.Tx. entriesFor takes it
// so the flow engine can read a replayed transaction's postings through
// its own open transaction instead of grabbing a second pooled
// connection.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// entriesFor returns a transaction's postings in created_at order,
// debit first on ties (the conventional source-first write order).
func entriesFor(ctx context.Context, q querier, txID string) ([]Entry, error) {
	const qEntries = `
SELECT id, transaction_id, wallet_id, side, amount, balance_before, balance_after, created_at
FROM ledger_entries
WHERE transaction_id = $1
ORDER BY created_at, side DESC
`
	rows, err := q.QueryContext(ctx, qEntries, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.TransactionID, &e.WalletID, &e.Side,
			&e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func listForWallet(ctx context.Context, db *sql.DB, walletID string, limit, offset int) ([]Transaction, int, error) {
	const qCount = `
SELECT COUNT(*)
FROM transactions
WHERE user_wallet_id = $1 OR system_wallet_id = $1
`
	var total int
	if err := db.QueryRowContext(ctx, qCount, walletID).Scan(&total); err != nil {
		return nil, 0, err
	}

	const q = `
SELECT id, kind, status, user_wallet_id, system_wallet_id, amount,
       reference_id, idempotency_key, description, metadata, created_at, updated_at
FROM transactions
WHERE user_wallet_id = $1 OR system_wallet_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`
	rows, err := db.QueryContext(ctx, q, walletID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
