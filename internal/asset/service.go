package asset

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ledger-platform/internal/apperror"

	"github.com/google/uuid"
)

// Service exposes asset type reads plus the admin-only create.
// Asset types are referentially immutable once wallets point at them,
// so there is no update or delete.
type Service struct {
	db    *sql.DB
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

func (s *Service) List(ctx context.Context) ([]Type, error) {
	return listTypes(ctx, s.db)
}

func (s *Service) Get(ctx context.Context, id string) (Type, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Type{}, apperror.Validation("invalid asset type id", nil)
	}
	return getType(ctx, s.db, id)
}

type CreateRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Type, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "required"
	}
	if strings.TrimSpace(req.Symbol) == "" {
		fields["symbol"] = "required"
	}
	if len(fields) > 0 {
		return Type{}, apperror.Validation("invalid asset type", fields)
	}

	now := s.clock().UTC()
	t := Type{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := insertType(ctx, s.db, t); err != nil {
		return Type{}, err
	}
	return t, nil
}
