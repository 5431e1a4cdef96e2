package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casanova-portal/internal/shared/middleware"
	"casanova-portal/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.AllowedOrigins),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupPaymentRoutes(v1, c)
		setupWebhookRoutes(v1, c)
	}

	return router
}

// ========================================
// PAYMENT ROUTES
// ========================================
func setupPaymentRoutes(v1 *gin.RouterGroup, c *container.Container) {
	payments := v1.Group("/payments")
	payments.Use(middleware.Auth(c.JWTManager))
	{
		payments.GET("/methods", c.PaymentHandler.GetMethods)
		payments.GET("/context/:expediente_id", c.PaymentHandler.GetContext)
		payments.POST("/intent", c.PaymentHandler.StartRedirect)
		payments.POST("/stripe/bank-transfer", c.PaymentHandler.StartBankTransfer)
		payments.GET("/intents/:token", c.PaymentHandler.GetIntent)
	}
}

// ========================================
// WEBHOOK ROUTES
// ========================================
// Webhooks are unauthenticated; trust comes from the provider signature.
func setupWebhookRoutes(v1 *gin.RouterGroup, c *container.Container) {
	v1.POST("/stripe/webhook", c.WebhookHandler.HandleStripe)
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			health["status"] = "degraded"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := appCtx.DB.HealthCheck(ctx); err != nil {
				dbStatus = "error"
				health["status"] = "degraded"
			}
		}

		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := appCtx.Cache.Ping(ctx); err != nil {
				redisStatus = "error"
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
		}

		statusCode := http.StatusOK
		if dbStatus != "ok" {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}
