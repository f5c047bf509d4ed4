package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/buywithme/assistant/config"
	"github.com/buywithme/assistant/internal/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, l *zap.Logger) *gin.Engine {
	l = logger.OrNop(l)

	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(l))
	router.Use(LoggerMiddleware(l))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	{
		v1.POST("/clarify/next", handler.NextQuestion)

		research := v1.Group("/research")
		{
			research.POST("/queries", handler.DraftQueries)
			research.POST("/collect", handler.CollectResearch)
		}

		v1.POST("/recommendations", handler.Recommend)

		products := v1.Group("/products")
		{
			products.POST("/search", handler.SearchProducts)
			products.POST("/rank", handler.RankProducts)
		}
	}

	return router
}
