// Package payments_api wires the HTTP surface: deposit initiation, the webhook
// receiver, verification, wallet reads and admin adjustments.
package payments_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/payments_api/handler"
	"github.com/datamart-payments-ledger/internal/payments_api/service"
	"github.com/gin-gonic/gin"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(
	log *slog.Logger,
	cfg *config.Config,
	depositService service.DepositService,
	walletService service.WalletService,
	adminService service.AdminService,
	settler service.SettlementApplier,
) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	depositHandler := handler.NewDepositHandler(log, depositService)
	webhookHandler := handler.NewWebhookHandler(log, cfg.Paystack.SecretKey, settler)
	walletHandler := handler.NewWalletHandler(log, walletService)
	adminHandler := handler.NewAdminHandler(log, adminService)

	setupRouter(log, httpRouter, cfg, depositHandler, webhookHandler, walletHandler, adminHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
