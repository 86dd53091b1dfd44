package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes (public read access)
	v1 := router.Group("/api/v1")
	{
		v1.GET("/time-based-data", handler.TimeBasedData)
		v1.GET("/top-buyers-sellers", handler.TopBuyersSellers)
		v1.GET("/marketplace-comparison", handler.MarketplaceComparison)
		v1.GET("/resale-data", handler.ResaleData)
		v1.GET("/token-transaction/:token_id", handler.TokenTransactions)
		v1.GET("/token-owned/:address", handler.TokensOwned)
	}
}
