package audit

import (
	"context"
	"database/sql"
)

// PostgresRepository appends audit events to the audit_events table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_subject, actor_role, wallet_id, asset_type_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8,$9)
`
	meta := e.Metadata
	if meta == "" {
		meta = "{}"
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.ActorSubject, e.ActorRole, e.WalletID, e.AssetTypeID, e.Message, meta, e.CreatedAt,
	)
	return err
}
