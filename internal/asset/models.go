package asset

import "time"

// Type is a fungible currency class. Wallets reference exactly one
// type; wallets of different types never transact with each other.
type Type struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Description string    `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
