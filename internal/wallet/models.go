package wallet

import (
	"time"

	"ledger-platform/internal/money"
)

// Wallet holds the balance of exactly one asset type.
//
// Money invariants:
// - balance never goes negative (CHECK constraint backs the service guard)
// - balance is mutated only by the ledger flow engine, under an
//   exclusive row lock, together with a ledger entry
type Wallet struct {
	ID          string       `json:"id" db:"id"`
	OwnerID     string       `json:"ownerId" db:"owner_id"`
	OwnerType   OwnerType    `json:"ownerType" db:"owner_type"`
	AssetTypeID string       `json:"assetTypeId" db:"asset_type_id"`
	Balance     money.Amount `json:"balance" db:"balance"`
	IsActive    bool         `json:"isActive" db:"is_active"`
	Name        string       `json:"name,omitempty" db:"name"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" db:"updated_at"`
}

type OwnerType string

const (
	OwnerTypeUser   OwnerType = "user"
	OwnerTypeSystem OwnerType = "system"
)

func ValidOwnerType(s string) bool {
	switch OwnerType(s) {
	case OwnerTypeUser, OwnerTypeSystem:
		return true
	default:
		return false
	}
}

// BalanceView is the read model for GET /wallets/{id}/balance.
type BalanceView struct {
	WalletID    string       `json:"walletId"`
	AssetTypeID string       `json:"assetTypeId"`
	AssetSymbol string       `json:"assetSymbol"`
	Balance     money.Amount `json:"balance"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
