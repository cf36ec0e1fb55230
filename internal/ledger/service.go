package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/money"
	"ledger-platform/internal/wallet"
	"ledger-platform/pkg/utils"

	"github.com/google/uuid"
)

// Service is the transactional flow engine. Each flow runs inside one
// store transaction on one pooled connection:
//
//	duplicate check -> lock pair -> validate -> insert pending row ->
//	debit -> credit -> complete -> commit
//
// There is no in-process lock or cached balance; the wallet rows under
// their exclusive locks are the only shared mutable state.
type Service struct {
	db    *sql.DB
	clock func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, clock: time.Now}
}

type TopupRequest struct {
	WalletID       string         `json:"walletId"`
	SystemWalletID string         `json:"systemWalletId"`
	Amount         money.Amount   `json:"amount"`
	ReferenceID    string         `json:"referenceId"`
	Description    string         `json:"description,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type BonusRequest struct {
	WalletID       string         `json:"walletId"`
	SystemWalletID string         `json:"systemWalletId"`
	Amount         money.Amount   `json:"amount"`
	Reason         string         `json:"reason"`
	Description    string         `json:"description,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type SpendRequest struct {
	WalletID       string         `json:"walletId"`
	SystemWalletID string         `json:"systemWalletId"`
	Amount         money.Amount   `json:"amount"`
	ServiceID      string         `json:"serviceId"`
	Description    string         `json:"description,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// flowSpec is the per-flow policy feeding the shared template. The
// debit side must cover the amount; topup and bonus debit the system
// wallet, spend debits the user wallet.
type flowSpec struct {
	kind           Kind
	userWalletID   string
	systemWalletID string
	debitWalletID  string
	amount         money.Amount
	referenceID    *string
	description    string
	metadata       map[string]any
}

// Topup converts external money into credits: treasury pays the user.
func (s *Service) Topup(ctx context.Context, idempotencyKey string, req TopupRequest) (Result, error) {
	fields := validateFlowIDs(req.WalletID, req.SystemWalletID, req.Amount)
	if strings.TrimSpace(req.ReferenceID) == "" {
		fields["referenceId"] = "required"
	}
	if len(fields) > 0 {
		return Result{}, apperror.Validation("invalid topup request", fields)
	}

	ref := strings.TrimSpace(req.ReferenceID)
	return s.run(ctx, idempotencyKey, flowSpec{
		kind:           KindTopup,
		userWalletID:   req.WalletID,
		systemWalletID: req.SystemWalletID,
		debitWalletID:  req.SystemWalletID,
		amount:         req.Amount,
		referenceID:    &ref,
		description:    req.Description,
		metadata:       req.Metadata,
	})
}

// Bonus issues free credits from a system reserve. The reason is kept
// in metadata; reference_id stays empty unless the caller supplies one.
func (s *Service) Bonus(ctx context.Context, idempotencyKey string, req BonusRequest) (Result, error) {
	fields := validateFlowIDs(req.WalletID, req.SystemWalletID, req.Amount)
	if strings.TrimSpace(req.Reason) == "" {
		fields["reason"] = "required"
	}
	if len(fields) > 0 {
		return Result{}, apperror.Validation("invalid bonus request", fields)
	}

	meta := cloneMetadata(req.Metadata)
	meta["reason"] = strings.TrimSpace(req.Reason)
	return s.run(ctx, idempotencyKey, flowSpec{
		kind:           KindBonus,
		userWalletID:   req.WalletID,
		systemWalletID: req.SystemWalletID,
		debitWalletID:  req.SystemWalletID,
		amount:         req.Amount,
		description:    req.Description,
		metadata:       meta,
	})
}

// Spend burns user credits into a system revenue wallet. The service id
// becomes the external correlator and is also kept in metadata.
func (s *Service) Spend(ctx context.Context, idempotencyKey string, req SpendRequest) (Result, error) {
	fields := validateFlowIDs(req.WalletID, req.SystemWalletID, req.Amount)
	if strings.TrimSpace(req.ServiceID) == "" {
		fields["serviceId"] = "required"
	}
	if len(fields) > 0 {
		return Result{}, apperror.Validation("invalid spend request", fields)
	}

	meta := cloneMetadata(req.Metadata)
	meta["serviceId"] = strings.TrimSpace(req.ServiceID)
	ref := "svc:" + strings.TrimSpace(req.ServiceID)
	return s.run(ctx, idempotencyKey, flowSpec{
		kind:           KindSpend,
		userWalletID:   req.WalletID,
		systemWalletID: req.SystemWalletID,
		debitWalletID:  req.WalletID,
		amount:         req.Amount,
		referenceID:    &ref,
		description:    req.Description,
		metadata:       meta,
	})
}

// run executes the shared flow template inside one store transaction.
func (s *Service) run(ctx context.Context, idempotencyKey string, spec flowSpec) (Result, error) {
	now := s.clock().UTC()
	txID := newID()

	var key *string
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		key = &k
	}

	var out Result
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// In-transaction duplicate guard: a committed transaction with
		// this key wins over everything, including a wiped response
		// cache.
		if key != nil {
			if prior, ok, err := findByKeyTx(ctx, tx, *key); err != nil {
				return err
			} else if ok {
				// Read the postings through this transaction's own
				// connection; one pooled connection per active flow.
				entries, err := entriesFor(ctx, tx, prior.ID)
				if err != nil {
					return err
				}
				out = Result{Transaction: prior, Entries: entries, Replayed: true}
				return nil
			}
		}

		locked, err := lockWalletPair(ctx, tx, spec.userWalletID, spec.systemWalletID)
		if err != nil {
			return err
		}

		source, target, err := resolveRoles(locked, spec)
		if err != nil {
			return err
		}
		if err := validatePair(source, target, spec.amount); err != nil {
			return err
		}

		t := Transaction{
			ID:             txID,
			Kind:           spec.kind,
			Status:         StatusPending,
			UserWalletID:   spec.userWalletID,
			SystemWalletID: spec.systemWalletID,
			Amount:         spec.amount,
			ReferenceID:    spec.referenceID,
			IdempotencyKey: key,
			Description:    spec.description,
			Metadata:       spec.metadata,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}

		// Source first by convention; both rows are locked, so order
		// does not affect correctness.
		debit, err := applyEntry(ctx, tx, txID, source, SideDebit, spec.amount, now)
		if err != nil {
			return err
		}
		credit, err := applyEntry(ctx, tx, txID, target, SideCredit, spec.amount, now)
		if err != nil {
			return err
		}

		if err := markCompleted(ctx, tx, txID, now); err != nil {
			return err
		}

		t.Status = StatusCompleted
		out = Result{Transaction: t, Entries: []Entry{debit, credit}}
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateIdempotencyKey) && key != nil {
			// Another request with this key committed first. Its row is
			// the source of truth; return it as if cached.
			return s.replayCommitted(ctx, *key)
		}
		return Result{}, err
	}
	return out, nil
}

// replayCommitted re-reads the winning transaction outside the aborted
// store transaction.
func (s *Service) replayCommitted(ctx context.Context, key string) (Result, error) {
	prior, ok, err := findByKey(ctx, s.db, key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperror.Conflict("idempotency key raced and winner not found")
	}
	r, err := s.format(ctx, prior)
	if err != nil {
		return Result{}, err
	}
	r.Replayed = true
	return r, nil
}

func (s *Service) format(ctx context.Context, t Transaction) (Result, error) {
	entries, err := entriesFor(ctx, s.db, t.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: t, Entries: entries}, nil
}

// Get returns a transaction with its postings in created_at order.
func (s *Service) Get(ctx context.Context, id string) (Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Result{}, apperror.Validation("invalid transaction id", nil)
	}
	t, err := getTransaction(ctx, s.db, id)
	if err != nil {
		return Result{}, err
	}
	return s.format(ctx, t)
}

// WalletTransactions is the paginated history for one wallet, newest
// first. The caller is expected to have resolved wallet existence.
func (s *Service) WalletTransactions(ctx context.Context, walletID string, page, limit int) ([]Transaction, int, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return nil, 0, apperror.Validation("invalid wallet id", nil)
	}
	page, limit = wallet.ClampPage(page, limit)
	return listForWallet(ctx, s.db, walletID, limit, (page-1)*limit)
}

// resolveRoles maps the locked pair onto debit source and credit
// target per the flow policy.
func resolveRoles(locked map[string]wallet.Wallet, spec flowSpec) (source, target wallet.Wallet, err error) {
	src, ok := locked[spec.debitWalletID]
	if !ok {
		return wallet.Wallet{}, wallet.Wallet{}, apperror.NotFound("wallet")
	}
	targetID := spec.userWalletID
	if spec.debitWalletID == spec.userWalletID {
		targetID = spec.systemWalletID
	}
	tgt, ok := locked[targetID]
	if !ok {
		return wallet.Wallet{}, wallet.Wallet{}, apperror.NotFound("wallet")
	}
	return src, tgt, nil
}

// validatePair asserts the preconditions every flow shares. Amount
// positivity is checked again even though request validation already
// enforced it.
func validatePair(source, target wallet.Wallet, amount money.Amount) error {
	if !amount.Positive() {
		return apperror.Validation("amount must be positive", nil)
	}
	if source.ID == target.ID {
		return apperror.Validation("wallets must differ", nil)
	}
	if !source.IsActive {
		return apperror.Conflict("wallet " + source.ID + " is inactive")
	}
	if !target.IsActive {
		return apperror.Conflict("wallet " + target.ID + " is inactive")
	}
	if source.AssetTypeID != target.AssetTypeID {
		return apperror.Conflict("asset type mismatch between wallets")
	}
	if source.Balance.Cmp(amount) < 0 {
		return apperror.InsufficientFunds(source.Balance.String(), amount.String())
	}
	return nil
}

func validateFlowIDs(userWalletID, systemWalletID string, amount money.Amount) map[string]string {
	fields := map[string]string{}
	if _, err := uuid.Parse(userWalletID); err != nil {
		fields["walletId"] = "must be a uuid"
	}
	if _, err := uuid.Parse(systemWalletID); err != nil {
		fields["systemWalletId"] = "must be a uuid"
	}
	if userWalletID != "" && userWalletID == systemWalletID {
		fields["systemWalletId"] = "must differ from walletId"
	}
	if !amount.Positive() {
		fields["amount"] = "must be positive"
	}
	return fields
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newID() string { return uuid.NewString() }
