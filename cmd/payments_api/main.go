package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/data/mongo"
	"github.com/datamart-payments-ledger/internal/data/postgres"
	cache "github.com/datamart-payments-ledger/internal/data/redis"
	"github.com/datamart-payments-ledger/internal/ledger"
	"github.com/datamart-payments-ledger/internal/logger"
	"github.com/datamart-payments-ledger/internal/payments_api"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/datamart-payments-ledger/internal/platform/messaging/producers"
	"github.com/datamart-payments-ledger/internal/platform/paystack"
	"github.com/datamart-payments-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("payments_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

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

	// Initialize Kafka producer for review flags
	reviewProducer, err := producers.NewReviewProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize review Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	depositRepo := postgres.NewDepositRepository(log, postgresDB)
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	userRepo := postgres.NewUserRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	projectionCache := cache.NewProjectionCache(log, redisDB.Client())

	// Initialize Paystack client
	paystackClient := paystack.NewClient(log, &cfg.Paystack)

	// Initialize services
	ledgerService := ledger.NewService(postgresDB, depositRepo, walletRepo, outboxRepo, reviewProducer, projectionCache, log)
	depositService := service.NewDepositService(depositRepo, userRepo, walletRepo, paystackClient, ledgerService, projectionCache, cfg.Cache.UserTTL, log)
	walletService := service.NewWalletService(walletRepo, historyRepo, projectionCache, cfg.Cache.WalletTTL, log)
	adminService := service.NewAdminService(userRepo, ledgerService, log)

	// Initialize REST server
	server := payments_api.NewServer(log, cfg, depositService, walletService, adminService, ledgerService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so in-flight settlements finish
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = reviewProducer.Close(); err != nil {
		log.Error("Error closing review Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
