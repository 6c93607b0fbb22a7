package payments_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/datamart-payments-ledger/internal/config"
	"github.com/datamart-payments-ledger/internal/payments_api/handler"
	"github.com/datamart-payments-ledger/internal/payments_api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	cfg *config.Config,
	depositHandler *handler.DepositHandler,
	webhookHandler *handler.WebhookHandler,
	walletHandler *handler.WalletHandler,
	adminHandler *handler.AdminHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Metrics())

	auth := middleware.Auth(cfg.Auth.JWTSecret)

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		v1.POST("/deposit", auth, depositHandler.Create)
		v1.GET("/verify-payment", auth, depositHandler.Verify)

		// The webhook authenticates by signature, not user session
		v1.POST("/paystack-webhook", webhookHandler.Receive)

		// Admin adjustments
		admin := v1.Group("/admin", auth, middleware.RequireAdmin())
		{
			admin.PUT("/users/:id/add-money", adminHandler.AddMoney)
			admin.PUT("/users/:id/deduct-money", adminHandler.DeductMoney)
		}
	}

	// Wallet reads
	wallet := r.Group("/api/wallet", auth)
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.GET("/transactions", walletHandler.GetTransactions)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
