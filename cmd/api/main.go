package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger-platform/internal/asset"
	"ledger-platform/internal/audit"
	"ledger-platform/internal/auth"
	"ledger-platform/internal/config"
	"ledger-platform/internal/httpapi"
	"ledger-platform/internal/idempotency"
	"ledger-platform/internal/ledger"
	"ledger-platform/internal/ratelimit"
	"ledger-platform/internal/wallet"
	"ledger-platform/pkg/logger"
	"ledger-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		httpapi.ExposeInternal = true
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{
		MaxOpenConns: cfg.DB.PoolMax,
		MinIdleConns: cfg.DB.PoolMin,
	})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Admin surface is enabled only when a secret is configured; the
	// ledger endpoints themselves are internal and unauthenticated.
	var authManager *auth.Manager
	if cfg.Auth.JWTSecret != "" {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("JWT_SECRET not set; admin endpoints disabled")
	}

	handlers := httpapi.Handlers{
		Assets: asset.NewService(db),
		Wallet: wallet.NewService(db),
		Ledger: ledger.NewService(db),
		Prune:  idempotency.NewStore(db, cfg.IdempotencyTTL),
		Audit:  audit.NewService(audit.NewPostgresRepository(db)),
		Checks: map[string]httpapi.CheckFunc{
			"postgres": func(ctx context.Context) error {
				return utils.HealthCheck(ctx, db, 2*time.Second)
			},
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		handlers:    handlers,
		limiter:     ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Window, cfg.RateLimit.Max),
		cache:       idempotency.NewStore(db, cfg.IdempotencyTTL),
		authManager: authManager,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	// Bounded drain: stop accepting, let in-flight flows finish their
	// store transactions, then force exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
