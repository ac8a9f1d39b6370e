package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/xiaomo-123/gemini-api-service/api/handlers"
	"github.com/xiaomo-123/gemini-api-service/api/middleware"
	"github.com/xiaomo-123/gemini-api-service/internal/repository"
	"github.com/xiaomo-123/gemini-api-service/internal/tracing"
	"github.com/xiaomo-123/gemini-api-service/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))
	r.Use(middleware.RequestIDMiddleware())

	// Health check endpoint (unauthenticated)
	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-API-KEY",
		ValidAPIKey: apikey,
	})

	// API group with version
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		// Mailbox account endpoints
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(s.MailService))
			accounts.POST("", handlers.CreateAccount(s.MailService))
			accounts.POST("/batch", handlers.BatchCreateAccounts(s.MailService))
			accounts.DELETE("/:id", handlers.DeleteAccount(s.MailService))
			accounts.POST("/select", handlers.SelectAccounts(s.RefreshService))
		}

		// Token refresh endpoint
		api.POST("/refresh", handlers.RefreshTokens(s.MailService, s.RefreshService, repos.MailStore))

		// Pool sync endpoints
		pool := api.Group("/pool")
		{
			pool.POST("/update", handlers.UpdatePool(s.PoolService))
			pool.POST("/clean", handlers.CleanPool(s.PoolService))
		}

		// Proxy endpoints
		proxy := api.Group("/proxy")
		{
			proxy.GET("", handlers.GetProxy(s.ProxyService))
			proxy.PUT("", handlers.SaveProxy(s.ProxyService))
			proxy.POST("/test", handlers.TestProxy(s.ProxyService))
		}
	}
}
