package wallet

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/money"

	"github.com/google/uuid"
)

// Service provides the wallet read views plus the admin-only create.
//
// Reads take no locks and run at the default isolation level: readers
// only ever see committed flow transactions, so a history can never
// include a half-completed posting.
type Service struct {
	db    *sql.DB
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ClampPage normalizes page/limit query values.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Wallet{}, apperror.Validation("invalid wallet id", nil)
	}
	return getWallet(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, ownerType string, page, limit int) ([]Wallet, int, error) {
	ownerType = strings.TrimSpace(ownerType)
	if ownerType != "" && !ValidOwnerType(ownerType) {
		return nil, 0, apperror.Validation("ownerType must be user or system", nil)
	}
	page, limit = ClampPage(page, limit)
	return listWallets(ctx, s.db, ownerType, limit, (page-1)*limit)
}

func (s *Service) Balance(ctx context.Context, id string) (BalanceView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return BalanceView{}, apperror.Validation("invalid wallet id", nil)
	}
	return getBalanceView(ctx, s.db, id)
}

// Exists is used by history reads to distinguish "unknown wallet" from
// "wallet with no transactions".
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, apperror.Validation("invalid wallet id", nil)
	}
	return walletExists(ctx, s.db, id)
}

type CreateRequest struct {
	OwnerID     string        `json:"ownerId"`
	OwnerType   string        `json:"ownerType"`
	AssetTypeID string        `json:"assetTypeId"`
	Name        string        `json:"name,omitempty"`
	Balance     *money.Amount `json:"balance,omitempty"`
}

// Create provisions a wallet. A non-zero opening balance is allowed for
// system wallets only; user wallets start at zero and are funded
// through the topup flow so the ledger stays complete.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Wallet, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.OwnerID) == "" {
		fields["ownerId"] = "required"
	}
	if !ValidOwnerType(req.OwnerType) {
		fields["ownerType"] = "must be user or system"
	}
	if _, err := uuid.Parse(req.AssetTypeID); err != nil {
		fields["assetTypeId"] = "must be a uuid"
	}
	opening := money.Zero()
	if req.Balance != nil {
		opening = *req.Balance
		if opening.Negative() {
			fields["balance"] = "must not be negative"
		} else if !opening.IsZero() && OwnerType(req.OwnerType) != OwnerTypeSystem {
			fields["balance"] = "only system wallets may open with a balance"
		}
	}
	if len(fields) > 0 {
		return Wallet{}, apperror.Validation("invalid wallet", fields)
	}

	now := s.clock().UTC()
	w := Wallet{
		ID:          uuid.NewString(),
		OwnerID:     strings.TrimSpace(req.OwnerID),
		OwnerType:   OwnerType(req.OwnerType),
		AssetTypeID: req.AssetTypeID,
		Balance:     opening,
		IsActive:    true,
		Name:        strings.TrimSpace(req.Name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := insertWallet(ctx, s.db, w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}
