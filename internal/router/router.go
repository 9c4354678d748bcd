package router

import (
	"github.com/gin-gonic/gin"

	"legalis/internal/config"
	"legalis/internal/handler"
	"legalis/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	documentH *handler.DocumentHandler,
	usageH *handler.UsageHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Document translation routes
	documents := v1.Group("/documents")
	documents.POST("", documentH.Submit)
	documents.GET("", documentH.List)
	documents.GET("/:id", documentH.GetByID)
	documents.GET("/:id/result", documentH.Result)
	documents.GET("/:id/export", documentH.Export)
	documents.DELETE("/:id", documentH.Delete)

	// Usage reporting
	usage := v1.Group("/usage")
	usage.GET("", usageH.Summary)
	usage.GET("/rate", usageH.RateStatus)

	return r
}
