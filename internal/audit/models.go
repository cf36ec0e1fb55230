package audit

import "time"

// Event is an immutable, append-only audit log record for the admin
// surface.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor capture is best-effort; never block a business flow on audit failure.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorSubject is the authenticated caller (token subject).
	ActorSubject string `json:"actor_subject,omitempty" db:"actor_subject"`
	ActorRole    string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	WalletID    string `json:"wallet_id,omitempty" db:"wallet_id"`
	AssetTypeID string `json:"asset_type_id,omitempty" db:"asset_type_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details (JSONB in Postgres).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventWalletCreated    EventType = "wallet_created"
	EventAssetTypeCreated EventType = "asset_type_created"
	EventIdempotencyPrune EventType = "idempotency_prune"
)
