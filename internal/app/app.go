package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/escrow-market/internal/api"
	"github.com/ayo6706/escrow-market/internal/api/handler"
	"github.com/ayo6706/escrow-market/internal/api/middleware"
	"github.com/ayo6706/escrow-market/internal/config"
	"github.com/ayo6706/escrow-market/internal/db"
	"github.com/ayo6706/escrow-market/internal/gateway"
	"github.com/ayo6706/escrow-market/internal/idempotency"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/ayo6706/escrow-market/internal/session"
	"github.com/ayo6706/escrow-market/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Run bootstraps the HTTP server and background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database migrations checked", zap.Int("applied", applied))
	}

	redisClient, err := NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	provider := NewProvider(cfg)
	svc := NewServices(cfg, store, provider, redisClient)

	if err := bootstrapAdmins(ctx, svc.Ledger, cfg.AdminIDs); err != nil {
		return err
	}

	payoutWorker := worker.NewPayoutWorker(svc.Payouts).
		WithPollInterval(cfg.PayoutPollInterval).
		WithBatchSize(cfg.PayoutBatchSize)
	stopPayouts := payoutWorker.Run(ctx)
	logger.Info("payout worker started", zap.Duration("interval", cfg.PayoutPollInterval), zap.Int32("batch", cfg.PayoutBatchSize))

	reconWorker := worker.NewReconciliationWorker(service.NewReconciliationService(store)).
		WithInterval(cfg.ReconciliationInterval)
	stopRecon := reconWorker.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	idemStore := idempotency.NewStore(redisClient, repository.New(pool), cfg.IdempotencyTTL)
	health := handler.NewHealthHandler(pool, redisClient)
	router := api.NewRouter(cfg, logger, health, idemStore, svc)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("provider", cfg.Provider),
		)
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping workers")
	stopPayouts()
	stopRecon()

	logger.Info("shutdown complete")
	return nil
}

// NewServices wires every domain service over one store.
func NewServices(cfg *config.Config, store service.QueryStore, provider gateway.Provider, rdb redis.Cmdable) api.Services {
	return api.Services{
		Ledger:   service.NewLedgerService(store),
		Catalog:  service.NewCatalogService(store, cfg.MinListingPrice),
		Escrow:   service.NewEscrowService(store),
		Disputes: service.NewDisputeService(store),
		Promos:   service.NewPromoService(store),
		Reviews:  service.NewReviewService(store),
		Deposits: service.NewDepositService(store, provider, cfg.MinDeposit),
		Payouts:  service.NewPayoutService(store, provider, cfg.MinWithdrawal),
		Webhooks: service.NewWebhookService(store, cfg.WebhookHMACKey, cfg.WebhookSkipSignature),
		Audit:    service.NewAuditService(store),
		Drafts:   session.NewDraftStore(rdb, cfg.DraftTTL),
	}
}

// NewProvider returns the payment provider selected by PROVIDER.
func NewProvider(cfg *config.Config) gateway.Provider {
	if cfg.Provider == config.ProviderCryptoPay {
		return gateway.NewCryptoPayClient(gateway.CryptoPayConfig{
			BaseURL:         cfg.CryptoPayAPIURL,
			Token:           cfg.CryptoPayToken,
			Asset:           cfg.CryptoPayAsset,
			TransferRetries: 3,
		}, nil)
	}
	zap.L().Warn("using mock payment provider; deposits and payouts are simulated")
	return gateway.NewMockProvider()
}

func bootstrapAdmins(ctx context.Context, ledger *service.LedgerService, ids []int64) error {
	for _, id := range ids {
		if _, err := ledger.GrantAdmin(ctx, id); err != nil {
			return fmt.Errorf("grant admin %d: %w", id, err)
		}
		zap.L().Info("admin account ensured", zap.Int64("account_id", id))
	}
	return nil
}

// NewLogger builds a JSON production logger. When file is set, output is
// also written there with size-based rotation.
func NewLogger(level, file string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(parseLevel(level))
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotating, lvl)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
