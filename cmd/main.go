/**
 * @description
 * Entry point for the projection service. It wires the event consumer, the
 * projection engine and the read-model query API: configuration, database
 * pool, optional Redis dedupe cache, RabbitMQ producer and consumer, the
 * per-projection orchestrators and the HTTP server.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/transactionprocessing/projection-service/internal/api"
	"github.com/transactionprocessing/projection-service/internal/config"
	"github.com/transactionprocessing/projection-service/internal/domain"
	"github.com/transactionprocessing/projection-service/internal/projection"
	"github.com/transactionprocessing/projection-service/internal/store"
	projrabbit "github.com/transactionprocessing/projection-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("unable to parse database URL", "error", err)
		os.Exit(1)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewPostgresRepository(dbpool)
	if err := repository.EnsureSchema(ctx); err != nil {
		logger.Warn("failed ensuring tables (may already exist)", "error", err)
	}

	// The dedupe cache is a best-effort optimization; the service runs fine
	// without Redis.
	var dedupe *projection.EventDedupe
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed; event dedupe cache disabled", "error", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				logger.Warn("redis ping failed; event dedupe cache disabled", "error", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				dedupe = projection.NewEventDedupe(redisClient, "projection:seen", time.Duration(cfg.DedupeTTLMinutes)*time.Minute)
				logger.Info("redis connected; event dedupe cache enabled")
			}
		}
	}

	var publisher projection.Publisher
	producer, err := projrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; ledger fan-out disabled", "error", err)
		publisher = &projrabbit.EventProducerFallback{}
	} else {
		defer producer.Close()
		publisher = producer
		logger.Info("rabbitmq producer connected")
	}

	completionSkew := time.Duration(cfg.CompletionSkewSeconds) * time.Second
	ledgerDispatcher := projection.NewMerchantLedgerDispatcher(repository.Ledger, publisher, cfg.EventExchange, logger)

	router := projection.NewRouter()
	router.Register(projection.NewOrchestrator[domain.MerchantBalanceState](
		"merchant_balance",
		projection.NewMerchantBalanceReducer(completionSkew),
		repository.MerchantBalances,
		ledgerDispatcher,
		dedupe,
		logger,
	))
	router.Register(projection.NewOrchestrator[domain.VoucherState](
		"voucher",
		projection.NewVoucherReducer(),
		repository.Vouchers,
		nil,
		dedupe,
		logger,
	))
	router.Register(projection.NewOrchestrator[domain.SettlementState](
		"settlement",
		projection.NewSettlementReducer(),
		repository.Settlements,
		nil,
		dedupe,
		logger,
	))
	router.Register(projection.NewOrchestrator[domain.EstateState](
		"estate",
		projection.NewEstateReducer(),
		repository.Estates,
		nil,
		dedupe,
		logger,
	))
	router.Register(projection.NewEstateProvisioningHandler(repository, logger))

	if err := router.BindAll(projection.DefaultRoutes()); err != nil {
		logger.Error("failed to bind built-in projection routes", "error", err)
		os.Exit(1)
	}
	overlay, err := config.ParseProjectionRoutes(cfg.ProjectionRoutes)
	if err != nil {
		logger.Error("invalid PROJECTION_ROUTES overlay", "error", err)
		os.Exit(1)
	}
	if err := router.BindAll(overlay); err != nil {
		logger.Error("failed to bind configured projection routes", "error", err)
		os.Exit(1)
	}

	// Per-message contexts derive from ctx, so the shutdown cancel below
	// drains in-flight projections back to the broker for redelivery.
	subscription := projection.NewSubscription(ctx, router, logger)

	consumer, err := projrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("rabbitmq consumer init failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	bindings := make(map[string]func([]byte) bool)
	for _, eventType := range []string{
		domain.EventTypeEstateCreated,
		domain.EventTypeMerchantCreated,
		domain.EventTypeManualDepositMade,
		domain.EventTypeAutomaticDepositMade,
		domain.EventTypeWithdrawalMade,
		domain.EventTypeTransactionHasStarted,
		domain.EventTypeTransactionHasBeenCompleted,
		domain.EventTypeMerchantFeeSettled,
		domain.EventTypeVoucherGenerated,
		domain.EventTypeVoucherIssued,
		domain.EventTypeVoucherFullyRedeemed,
		domain.EventTypeSettlementCreated,
		domain.EventTypeMerchantFeeAddedToSettlement,
		domain.EventTypeSettlementProcessingStarted,
		domain.EventTypeSettlementCompleted,
	} {
		bindings[eventType] = subscription.HandleMessage
	}

	if err := consumer.ConsumeWithBindings(cfg.EventExchange, cfg.EventQueue, bindings); err != nil {
		logger.Error("event consumer start failed", "error", err)
		os.Exit(1)
	}
	logger.Info("event consumer started", "exchange", cfg.EventExchange, "queue", cfg.EventQueue)

	handlers := api.NewProjectionHandlers(repository)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: api.NewRouter(handlers, cfg.OperatorJWKSURL, cfg.InternalAPIKey),
	}

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped unexpectedly", "error", err)
			sigCh <- syscall.SIGTERM
		}
	}()

	<-sigCh
	logger.Info("shutdown started")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	logger.Info("shutdown complete")
}
