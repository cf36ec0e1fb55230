package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/asset"
	"ledger-platform/internal/audit"
	"ledger-platform/internal/ledger"
	"ledger-platform/internal/wallet"
	"ledger-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return envelopes.

type AssetService interface {
	List(ctx context.Context) ([]asset.Type, error)
	Create(ctx context.Context, req asset.CreateRequest) (asset.Type, error)
}

type WalletService interface {
	Get(ctx context.Context, id string) (wallet.Wallet, error)
	List(ctx context.Context, ownerType string, page, limit int) ([]wallet.Wallet, int, error)
	Balance(ctx context.Context, id string) (wallet.BalanceView, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, req wallet.CreateRequest) (wallet.Wallet, error)
}

type LedgerService interface {
	Topup(ctx context.Context, idempotencyKey string, req ledger.TopupRequest) (ledger.Result, error)
	Bonus(ctx context.Context, idempotencyKey string, req ledger.BonusRequest) (ledger.Result, error)
	Spend(ctx context.Context, idempotencyKey string, req ledger.SpendRequest) (ledger.Result, error)
	Get(ctx context.Context, id string) (ledger.Result, error)
	WalletTransactions(ctx context.Context, walletID string, page, limit int) ([]ledger.Transaction, int, error)
}

type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// CheckFunc reports dependency health for GET /health.
type CheckFunc func(ctx context.Context) error

type Handlers struct {
	Assets AssetService
	Wallet WalletService
	Ledger LedgerService
	Prune  Pruner
	Audit  *audit.Service

	Checks map[string]CheckFunc
}

const headerReplayed = "X-Idempotency-Replayed"
const headerIdempotencyKey = "Idempotency-Key"

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	type check struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	results := map[string]check{}
	healthy := true
	for name, fn := range h.Checks {
		if err := fn(c.Request.Context()); err != nil {
			healthy = false
			results[name] = check{Status: "down", Error: err.Error()}
			continue
		}
		results[name] = check{Status: "up"}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": results})
}

// --- Asset types ---

func (h Handlers) ListAssetTypes(c *gin.Context) {
	out, err := h.Assets.List(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, http.StatusOK, out)
}

// --- Wallets (read views) ---

func (h Handlers) ListWallets(c *gin.Context) {
	page, limit := pageParams(c)
	out, total, err := h.Wallet.List(c.Request.Context(), c.Query("ownerType"), page, limit)
	if err != nil {
		Fail(c, err)
		return
	}
	page, limit = wallet.ClampPage(page, limit)
	OKPaginated(c, out, NewPagination(page, limit, total))
}

func (h Handlers) GetWallet(c *gin.Context) {
	w, err := h.Wallet.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, http.StatusOK, w)
}

func (h Handlers) GetWalletBalance(c *gin.Context) {
	v, err := h.Wallet.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, http.StatusOK, v)
}

func (h Handlers) GetWalletTransactions(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.Wallet.Exists(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if !ok {
		Fail(c, apperror.NotFound("wallet"))
		return
	}

	page, limit := pageParams(c)
	out, total, err := h.Ledger.WalletTransactions(c.Request.Context(), id, page, limit)
	if err != nil {
		Fail(c, err)
		return
	}
	page, limit = wallet.ClampPage(page, limit)
	OKPaginated(c, out, NewPagination(page, limit, total))
}

// --- Mutation flows ---

func (h Handlers) Topup(c *gin.Context) {
	var req ledger.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperror.Validation("invalid request body: "+err.Error(), nil))
		return
	}
	h.respondFlow(c)(h.Ledger.Topup(c.Request.Context(), c.GetHeader(headerIdempotencyKey), req))
}

func (h Handlers) Bonus(c *gin.Context) {
	var req ledger.BonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperror.Validation("invalid request body: "+err.Error(), nil))
		return
	}
	h.respondFlow(c)(h.Ledger.Bonus(c.Request.Context(), c.GetHeader(headerIdempotencyKey), req))
}

func (h Handlers) Spend(c *gin.Context) {
	var req ledger.SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperror.Validation("invalid request body: "+err.Error(), nil))
		return
	}
	h.respondFlow(c)(h.Ledger.Spend(c.Request.Context(), c.GetHeader(headerIdempotencyKey), req))
}

// respondFlow finishes a mutation uniformly: flow results respond 201
// even when rebuilt from the committed winner of an idempotency race,
// since the first caller saw 201 for the same body.
func (h Handlers) respondFlow(c *gin.Context) func(ledger.Result, error) {
	return func(res ledger.Result, err error) {
		if err != nil {
			Fail(c, err)
			return
		}
		if res.Replayed {
			c.Header(headerReplayed, "true")
		}
		OK(c, http.StatusCreated, res)
	}
}

func (h Handlers) GetTransaction(c *gin.Context) {
	res, err := h.Ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, http.StatusOK, res)
}

// --- Admin surface ---

func (h Handlers) CreateWallet(c *gin.Context) {
	var req wallet.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperror.Validation("invalid request body: "+err.Error(), nil))
		return
	}
	w, err := h.Wallet.Create(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	h.auditAdmin(c, audit.EventWalletCreated, "wallet created", audit.Event{WalletID: w.ID, AssetTypeID: w.AssetTypeID})
	OK(c, http.StatusCreated, w)
}

func (h Handlers) CreateAssetType(c *gin.Context) {
	var req asset.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperror.Validation("invalid request body: "+err.Error(), nil))
		return
	}
	t, err := h.Assets.Create(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	h.auditAdmin(c, audit.EventAssetTypeCreated, "asset type created", audit.Event{AssetTypeID: t.ID})
	OK(c, http.StatusCreated, t)
}

func (h Handlers) PruneIdempotencyKeys(c *gin.Context) {
	n, err := h.Prune.PruneExpired(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	h.auditAdmin(c, audit.EventIdempotencyPrune, "expired idempotency keys pruned", audit.Event{
		Metadata: `{"pruned":` + strconv.FormatInt(n, 10) + `}`,
	})
	OK(c, http.StatusOK, gin.H{"pruned": n})
}

func (h Handlers) auditAdmin(c *gin.Context, typ audit.EventType, msg string, e audit.Event) {
	if h.Audit == nil {
		return
	}
	// Identity keys are set by the bearer-token middleware.
	subject := c.GetString("subject")
	role := c.GetString("role")
	if err := h.Audit.AdminAction(c.Request.Context(), typ, subject, role, msg, e); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(wallet.DefaultPageLimit)))
	return page, limit
}
