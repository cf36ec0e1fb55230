package ledger

import (
	"time"

	"ledger-platform/internal/money"
)

// Transaction is a business event moving value between a user wallet
// and a system wallet. It is inserted pending and promoted to
// completed only once both ledger entries exist; on any failure the
// enclosing store transaction rolls the row back, so no failed row
// survives a flow abort.
type Transaction struct {
	ID             string         `json:"id" db:"id"`
	Kind           Kind           `json:"type" db:"kind"`
	Status         Status         `json:"status" db:"status"`
	UserWalletID   string         `json:"userWalletId" db:"user_wallet_id"`
	SystemWalletID string         `json:"systemWalletId" db:"system_wallet_id"`
	Amount         money.Amount   `json:"amount" db:"amount"`
	ReferenceID    *string        `json:"referenceId,omitempty" db:"reference_id"`
	IdempotencyKey *string        `json:"idempotencyKey,omitempty" db:"idempotency_key"`
	Description    string         `json:"description,omitempty" db:"description"`
	Metadata       map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

type Kind string

const (
	KindTopup Kind = "topup"
	KindBonus Kind = "bonus"
	KindSpend Kind = "spend"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry is an immutable posting against one wallet, with the balance
// snapshot taken under the row lock that produced it.
//
// Double-entry invariant: every completed Transaction owns exactly two
// entries, one debit and one credit, equal amounts.
type Entry struct {
	ID            string       `json:"id" db:"id"`
	TransactionID string       `json:"transactionId" db:"transaction_id"`
	WalletID      string       `json:"walletId" db:"wallet_id"`
	Side          Side         `json:"side" db:"side"`
	Amount        money.Amount `json:"amount" db:"amount"`
	BalanceBefore money.Amount `json:"balanceBefore" db:"balance_before"`
	BalanceAfter  money.Amount `json:"balanceAfter" db:"balance_after"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
}

type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Result is the formatted view of a completed transaction returned by
// every flow. Replayed marks responses rebuilt from a previously
// committed transaction rather than fresh writes.
type Result struct {
	Transaction Transaction `json:"transaction"`
	Entries     []Entry     `json:"entries"`
	Replayed    bool        `json:"-"`
}
