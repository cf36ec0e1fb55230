package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Record is a cached response envelope keyed by (key, request_path).
type Record struct {
	ID             string    `json:"id" db:"id"`
	Key            string    `json:"key" db:"key"`
	RequestPath    string    `json:"requestPath" db:"request_path"`
	ResponseStatus int       `json:"responseStatus" db:"response_status"`
	ResponseBody   []byte    `json:"responseBody" db:"response_body"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt      time.Time `json:"expiresAt" db:"expires_at"`
}

// Store persists cached responses in the idempotency_keys table.
//
// This is the first idempotency layer, sitting at the request boundary.
// The unique constraint on transactions.idempotency_key is the second;
// when the two disagree the transactions table wins, so Store is
// deliberately best-effort.
type Store struct {
	db    *sql.DB
	ttl   time.Duration
	clock func() time.Time
}

func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{db: db, ttl: ttl, clock: time.Now}
}

// Lookup returns the cached response for (key, path) when present and
// unexpired.
func (s *Store) Lookup(ctx context.Context, key, path string) (Record, bool, error) {
	const q = `
SELECT id, key, request_path, response_status, response_body, created_at, expires_at
FROM idempotency_keys
WHERE key = $1 AND request_path = $2 AND expires_at > $3
`
	var r Record
	err := s.db.QueryRowContext(ctx, q, key, path, s.clock().UTC()).Scan(
		&r.ID, &r.Key, &r.RequestPath, &r.ResponseStatus, &r.ResponseBody, &r.CreatedAt, &r.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return r, true, nil
}

// Save inserts the response; on a (key, path) conflict the existing row
// is left unchanged so the first stored response keeps replaying.
func (s *Store) Save(ctx context.Context, key, path string, status int, body []byte) error {
	now := s.clock().UTC()
	const q = `
INSERT INTO idempotency_keys (id, key, request_path, response_status, response_body, created_at, expires_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
ON CONFLICT (key, request_path) DO NOTHING
`
	_, err := s.db.ExecContext(ctx, q, key, path, status, body, now, now.Add(s.ttl))
	return err
}

// PruneExpired deletes rows past their TTL and reports how many went.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM idempotency_keys WHERE expires_at <= $1`
	res, err := s.db.ExecContext(ctx, q, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
