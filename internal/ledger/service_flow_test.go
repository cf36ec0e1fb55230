package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"ledger-platform/internal/money"

	"github.com/jackc/pgx/v5/pgconn"
)

// The flow template runs against a scripted database/sql driver: each
// test declares the exact statement sequence one flow is allowed to
// issue, with canned replies. The pool is pinned to a single connection,
// so any code path that reaches for a second one while the flow's
// transaction is open fails instead of silently draining the pool.

const (
	idAsset = "9b1de1a2-61a4-4c9a-90a1-2b66cf2ce301"
	idTxn   = "e3b7a1cc-6f6e-4a8c-b8fd-7d4d9a5b1f44"
)

type step struct {
	match  string
	rows   *rowsReply
	result driver.Result
	err    error
}

type rowsReply struct {
	columns []string
	values  [][]driver.Value
}

type script struct {
	mu    sync.Mutex
	steps []step

	commits   int
	rollbacks int
}

func (s *script) next(query string) (step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return step{}, fmt.Errorf("unexpected statement: %s", query)
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if !strings.Contains(query, st.match) {
		return step{}, fmt.Errorf("statement %q does not contain %q", query, st.match)
	}
	return st, nil
}

func (s *script) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

type scriptConn struct{ s *script }

func (c *scriptConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not scripted")
}
func (c *scriptConn) Close() error { return nil }
func (c *scriptConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *scriptConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return scriptTx{s: c.s}, nil
}

func (c *scriptConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	st, err := c.s.next(query)
	if err != nil {
		return nil, err
	}
	if st.err != nil {
		return nil, st.err
	}
	reply := st.rows
	if reply == nil {
		reply = &rowsReply{}
	}
	return &scriptRows{reply: reply}, nil
}

func (c *scriptConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	st, err := c.s.next(query)
	if err != nil {
		return nil, err
	}
	if st.err != nil {
		return nil, st.err
	}
	if st.result != nil {
		return st.result, nil
	}
	return driver.RowsAffected(1), nil
}

type scriptTx struct{ s *script }

func (t scriptTx) Commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.commits++
	return nil
}

func (t scriptTx) Rollback() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.rollbacks++
	return nil
}

type scriptRows struct {
	reply *rowsReply
	i     int
}

func (r *scriptRows) Columns() []string { return r.reply.columns }
func (r *scriptRows) Close() error      { return nil }
func (r *scriptRows) Next(dest []driver.Value) error {
	if r.i >= len(r.reply.values) {
		return io.EOF
	}
	copy(dest, r.reply.values[r.i])
	r.i++
	return nil
}

type scriptConnector struct{ conn *scriptConn }

func (c scriptConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c scriptConnector) Driver() driver.Driver                        { return scriptDriver{} }

type scriptDriver struct{}

func (scriptDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use sql.OpenDB")
}

// scriptedDB wires a script into a pool capped at one connection.
func scriptedDB(s *script) *sql.DB {
	db := sql.OpenDB(scriptConnector{conn: &scriptConn{s: s}})
	db.SetMaxOpenConns(1)
	return db
}

var txColumns = []string{
	"id", "kind", "status", "user_wallet_id", "system_wallet_id", "amount",
	"reference_id", "idempotency_key", "description", "metadata", "created_at", "updated_at",
}

func committedTopupRow(key string, at time.Time) *rowsReply {
	return &rowsReply{
		columns: txColumns,
		values: [][]driver.Value{{
			idTxn, "topup", "completed", idAlice, idTreasury, "100",
			"stripe-111", key, "", []byte(`{}`), at, at,
		}},
	}
}

func topupEntryRows(at time.Time) *rowsReply {
	cols := []string{"id", "transaction_id", "wallet_id", "side", "amount", "balance_before", "balance_after", "created_at"}
	return &rowsReply{
		columns: cols,
		values: [][]driver.Value{
			{"11111111-1111-1111-1111-111111111111", idTxn, idTreasury, "debit", "100", "1000000", "999900", at},
			{"22222222-2222-2222-2222-222222222222", idTxn, idAlice, "credit", "100", "500", "600", at},
		},
	}
}

func walletPairRows(at time.Time) *rowsReply {
	cols := []string{"id", "owner_id", "owner_type", "asset_type_id", "balance", "is_active", "name", "created_at", "updated_at"}
	return &rowsReply{
		columns: cols,
		values: [][]driver.Value{
			{idTreasury, "system:treasury", "system", idAsset, "1000000", true, "Treasury", at, at},
			{idAlice, "user:alice", "user", idAsset, "500", true, "Alice", at, at},
		},
	}
}

func topupReq() TopupRequest {
	return TopupRequest{
		WalletID:       idAlice,
		SystemWalletID: idTreasury,
		Amount:         money.MustParse("100"),
		ReferenceID:    "stripe-111",
	}
}

// A key that already committed must replay through the flow's own open
// transaction. With the pool capped at one connection, needing a second
// one would block here instead of answering.
func TestTopup_KeyHitReplaysOnOneConnection(t *testing.T) {
	at := time.Now().UTC()
	s := &script{steps: []step{
		{match: "idempotency_key = $1", rows: committedTopupRow("k1", at)},
		{match: "FROM ledger_entries", rows: topupEntryRows(at)},
	}}
	db := scriptedDB(s)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := NewService(db).Topup(ctx, "k1", topupReq())
	if err != nil {
		t.Fatalf("replay hit must answer on the flow's connection: %v", err)
	}
	if !res.Replayed {
		t.Fatalf("expected a replayed result")
	}
	if res.Transaction.ID != idTxn {
		t.Fatalf("wrong transaction replayed: %s", res.Transaction.ID)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected both postings, got %d", len(res.Entries))
	}
	if s.commits != 1 || s.rollbacks != 0 {
		t.Fatalf("expected clean commit, got commits=%d rollbacks=%d", s.commits, s.rollbacks)
	}
	if n := s.remaining(); n != 0 {
		t.Fatalf("%d scripted statements never ran", n)
	}
}

// Full fresh-flow sequence: duplicate pre-check, pair lock, pending
// insert, debit then credit, completion, commit.
func TestTopup_WritesDoubleEntry(t *testing.T) {
	at := time.Now().UTC()
	s := &script{steps: []step{
		{match: "idempotency_key = $1"},
		{match: "FOR UPDATE", rows: walletPairRows(at)},
		{match: "INSERT INTO transactions"},
		{match: "UPDATE wallets"},
		{match: "INSERT INTO ledger_entries"},
		{match: "UPDATE wallets"},
		{match: "INSERT INTO ledger_entries"},
		{match: "UPDATE transactions", result: driver.RowsAffected(1)},
	}}
	db := scriptedDB(s)
	defer db.Close()

	res, err := NewService(db).Topup(context.Background(), "k1", topupReq())
	if err != nil {
		t.Fatalf("flow failed: %v", err)
	}
	if res.Replayed {
		t.Fatalf("fresh flow must not report a replay")
	}
	if res.Transaction.Status != StatusCompleted {
		t.Fatalf("status = %s", res.Transaction.Status)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected exactly two postings, got %d", len(res.Entries))
	}

	debit, credit := res.Entries[0], res.Entries[1]
	if debit.Side != SideDebit || debit.WalletID != idTreasury {
		t.Fatalf("first posting must debit the system wallet: %+v", debit)
	}
	if !debit.BalanceBefore.Equal(money.MustParse("1000000")) || !debit.BalanceAfter.Equal(money.MustParse("999900")) {
		t.Fatalf("debit snapshot wrong: %s -> %s", debit.BalanceBefore, debit.BalanceAfter)
	}
	if credit.Side != SideCredit || credit.WalletID != idAlice {
		t.Fatalf("second posting must credit the user wallet: %+v", credit)
	}
	if !credit.BalanceBefore.Equal(money.MustParse("500")) || !credit.BalanceAfter.Equal(money.MustParse("600")) {
		t.Fatalf("credit snapshot wrong: %s -> %s", credit.BalanceBefore, credit.BalanceAfter)
	}
	if !debit.Amount.Equal(credit.Amount) {
		t.Fatalf("postings must carry equal amounts")
	}

	if s.commits != 1 || s.rollbacks != 0 {
		t.Fatalf("expected one commit, got commits=%d rollbacks=%d", s.commits, s.rollbacks)
	}
	if n := s.remaining(); n != 0 {
		t.Fatalf("%d scripted statements never ran", n)
	}
}

// Losing the partial-unique-index race aborts the flow's transaction
// and re-reads the winner outside it.
func TestTopup_DuplicateKeyRaceReturnsWinner(t *testing.T) {
	at := time.Now().UTC()
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_idempotency_key_key"}
	s := &script{steps: []step{
		{match: "idempotency_key = $1"},
		{match: "FOR UPDATE", rows: walletPairRows(at)},
		{match: "INSERT INTO transactions", err: dup},
		{match: "idempotency_key = $1", rows: committedTopupRow("k1", at)},
		{match: "FROM ledger_entries", rows: topupEntryRows(at)},
	}}
	db := scriptedDB(s)
	defer db.Close()

	res, err := NewService(db).Topup(context.Background(), "k1", topupReq())
	if err != nil {
		t.Fatalf("losing the race must return the winner: %v", err)
	}
	if !res.Replayed {
		t.Fatalf("raced result must be marked replayed")
	}
	if res.Transaction.ID != idTxn {
		t.Fatalf("expected the winner row, got %s", res.Transaction.ID)
	}
	if s.rollbacks != 1 || s.commits != 0 {
		t.Fatalf("losing transaction must roll back, got commits=%d rollbacks=%d", s.commits, s.rollbacks)
	}
	if n := s.remaining(); n != 0 {
		t.Fatalf("%d scripted statements never ran", n)
	}
}
