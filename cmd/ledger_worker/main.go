package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/data/mongo"
	"github.com/datamart-payments-ledger/internal/data/postgres"
	cache "github.com/datamart-payments-ledger/internal/data/redis"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/logger"
	"github.com/datamart-payments-ledger/internal/platform/messaging/consumers"
	"github.com/datamart-payments-ledger/internal/platform/messaging/producers"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
	"github.com/datamart-payments-ledger/internal/platform/persistence"
	"github.com/datamart-payments-ledger/internal/worker"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisDB, err := persistence.NewRedisDB(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	depositRepo := postgres.NewDepositRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	if err := historyRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure history indexes", "error", err)
		os.Exit(1)
	}
	projectionCache := cache.NewProjectionCache(log, redisDB.Client())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)

	// Initialize Kafka producers
	walletEventProducer, err := producers.NewWalletEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize wallet event Kafka producer", "error", err)
		os.Exit(1)
	}

	reviewProducer, err := producers.NewReviewProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize review Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Consumers are nil-safe.

	// Initialize Paystack client for reconciliation
	paystackClient := paystack.NewClient(log, &cfg.Paystack)

	// Initialize settlement service shared by the background jobs
	ledgerService := ledger.NewService(postgresDB, depositRepo, walletRepo, outboxRepo, reviewProducer, projectionCache, log)

	// Initialize projection pipeline behind a worker pool
	projector := worker.NewHistoryProjector(historyRepo, projectionCache, log)
	poolService, err := worker.NewWorkerPoolProjectionService(
		projector,
		worker.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}
	eventHandler := worker.NewWalletEventHandler(log, poolService, dlqProducer)

	// Initialize background jobs
	outboxPoller := worker.NewOutboxPoller(&cfg.Outbox, outboxRepo, walletEventProducer, dlqProducer, log)
	reconciler := worker.NewReconciler(&cfg.Deposit, depositRepo, paystackClient, ledgerService, log)
	sweeper := worker.NewExpirySweeper(&cfg.Deposit, depositRepo, ledgerService, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.WalletEventTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, eventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxPoller.Start(appCtx)
	}()

	// Start deposit reconciler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Start(appCtx)
	}()

	// Start expiry sweeper in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool
	log.Info("Shutting down worker pool", "running_workers", poolService.Running())
	poolService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers
	if err = walletEventProducer.Close(); err != nil {
		log.Error("Error closing wallet event Kafka producer", "error", err)
	}
	if err = reviewProducer.Close(); err != nil {
		log.Error("Error closing review Kafka producer", "error", err)
	}
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Ledger Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Ledger Worker shutdown completed with errors")
	} else {
		log.Info("Ledger Worker shutdown completed successfully")
	}
}
