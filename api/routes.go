package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/dmarcwatch/api/handlers"
	"github.com/customeros/dmarcwatch/api/middleware"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/internal/tracing"
	"github.com/customeros/dmarcwatch/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, db *gorm.DB, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// Health check and status endpoints
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(db))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-DMARCWATCH-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	{
		reports := api.Group("/reports")
		{
			reports.GET("", handlers.ListReports(repos))
			reports.GET("/:id", handlers.GetReport(repos))
		}

		api.GET("/alerts", handlers.ListAlerts(repos))
		api.GET("/logs", handlers.ListProcessingLogs(repos))
		api.POST("/process", handlers.TriggerProcessing(s.ProcessorService))
	}
}
