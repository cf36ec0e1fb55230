package main

import (
	"ledger-platform/internal/auth"
	"ledger-platform/internal/httpapi"
	"ledger-platform/internal/idempotency"
	"ledger-platform/internal/ratelimit"
	"ledger-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	handlers    httpapi.Handlers
	limiter     ratelimit.Limiter
	cache       idempotency.ResponseCache
	authManager *auth.Manager
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal services.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	h := deps.handlers

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(ratelimit.Middleware(deps.limiter))
	{
		v1.GET("/asset-types", h.ListAssetTypes)

		wallets := v1.Group("/wallets")
		{
			wallets.GET("", h.ListWallets)
			wallets.GET("/:id", h.GetWallet)
			wallets.GET("/:id/balance", h.GetWalletBalance)
			wallets.GET("/:id/transactions", h.GetWalletTransactions)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", h.GetTransaction)

			// Mutations sit behind the idempotency stage: replay on
			// hit, capture-and-store on miss.
			mutations := transactions.Group("")
			mutations.Use(idempotency.Middleware(deps.cache))
			{
				mutations.POST("/topup", h.Topup)
				mutations.POST("/bonus", h.Bonus)
				mutations.POST("/spend", h.Spend)
			}
		}

		// ADMIN routes: bearer token + role gate. Disabled entirely
		// when no JWT secret is configured.
		if deps.authManager != nil {
			admin := v1.Group("/admin")
			admin.Use(auth.RequireAccessToken(deps.authManager))
			{
				provisioning := admin.Group("")
				provisioning.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleOperator))
				{
					provisioning.POST("/wallets", h.CreateWallet)
					provisioning.POST("/asset-types", h.CreateAssetType)
				}

				maintenance := admin.Group("")
				maintenance.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
				{
					maintenance.POST("/idempotency-keys/prune", h.PruneIdempotencyKeys)
				}
			}
		}
	}
}
