// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/sales"
	"salescycle/internal/infrastructure/cache"
	"salescycle/internal/infrastructure/http/v1/handlers"
	"salescycle/internal/infrastructure/http/v1/middleware"
	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Service *sales.Service
	Logger  *logger.Logger
	Pool    *postgres.Pool
	Version string

	// Optional
	Display     *cache.DeliveryDisplay
	Activity    *audit.BoundedLog
	History     handlers.HistoryReader
	Idempotency *postgres.IdempotencyStore
	// HealthChecks are extra readiness probes keyed by name
	HealthChecks map[string]handlers.Pinger
	Debug        bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version, cfg.HealthChecks)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.UserContext())
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()

	salesHandler := handlers.NewSalesHandler(base, cfg.Service, cfg.Display)
	salesHandler.RegisterRoutes(v1.Group("/sales"))

	if cfg.Activity != nil {
		activityHandler := handlers.NewActivityHandler(base, cfg.Activity, cfg.History)
		v1.GET("/sales/activity", activityHandler.List)
		if cfg.History != nil {
			v1.GET("/sales/activity/:entityType/:id", activityHandler.History)
		}
	}

	return router
}
