package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VrushankPatel/shield-sub001/internal/app"
	"github.com/VrushankPatel/shield-sub001/internal/auth"
	"github.com/VrushankPatel/shield-sub001/internal/platform/cache"
	"github.com/VrushankPatel/shield-sub001/internal/platform/db"
	"github.com/VrushankPatel/shield-sub001/internal/ratelimit"
	"github.com/VrushankPatel/shield-sub001/internal/rbac"
	"github.com/VrushankPatel/shield-sub001/internal/rootaccount"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
	"github.com/VrushankPatel/shield-sub001/internal/tenants"
	"github.com/VrushankPatel/shield-sub001/internal/users"
	"github.com/VrushankPatel/shield-sub001/internal/verify"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	bootstrapRoot := flag.Bool("bootstrap-root", false, "initialise the root account, print its password once, and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}

	hasher := shared.NewBcryptHasher(cfg.BcryptCost)
	auditLogger := shared.NewAuditLogger(dbpool)

	limiter := ratelimit.NewService(ratelimit.NewRepository(dbpool), ratelimit.Config{
		Window:    cfg.RateLimitWindow,
		Max:       cfg.RateLimitMax,
		Retention: cfg.RateLimitRetention,
	}, logger)

	userRepo := users.NewRepository(dbpool)
	rbacCache := rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
	rbacService := rbac.NewService(rbac.NewRepository(dbpool), userRepo, auditLogger, rbacCache, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService)

	provisioner := tenants.NewProvisioner(dbpool, userRepo)
	verifier := verify.NewDevVerifier(logger)
	rootManager := rootaccount.NewManager(
		rootaccount.NewRepository(dbpool),
		hasher, codec, verifier, provisioner, auditLogger, logger,
		rootaccount.Config{
			Email:            cfg.RootEmail,
			Mobile:           cfg.RootMobile,
			LockoutThreshold: cfg.LockoutThreshold,
			LockoutDuration:  cfg.LockoutDuration,
		})

	if *bootstrapRoot {
		result, err := rootManager.Bootstrap(ctx)
		if err != nil {
			logger.Error("bootstrap root account", slog.Any("error", err))
			os.Exit(1)
		}
		if !result.Generated {
			fmt.Println("root account already initialised")
			return
		}
		fmt.Printf("root login: %s\nroot password (shown once): %s\n", rootaccount.LoginID, result.Password)
		return
	}

	rootHandler := rootaccount.NewHandler(logger, rootManager)
	authenticator := auth.NewAuthenticator(codec, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: authenticator,
		Limiter:       limiter,
		RBACHandler:   rbacHandler,
		RootHandler:   rootHandler,
		Pool:          dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
