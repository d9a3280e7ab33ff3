package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/parceltrace/parceltrace/api/handlers"
	"github.com/parceltrace/parceltrace/api/middleware"
	"github.com/parceltrace/parceltrace/internal/cron"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/modules/emailglobal"
	"github.com/parceltrace/parceltrace/modules/emailuser"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/imapwatch"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(
	r *gin.Engine,
	repos *repository.Repositories,
	moduleRegistry *registry.Registry,
	supervisor *imapwatch.Supervisor,
	cronManager *cron.CronManager,
	apikey string,
) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}
	if moduleRegistry == nil {
		panic("Registry cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-PARCELTRACE-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		api.GET("/system/status", handlers.SystemStatus(cronManager, supervisor, moduleRegistry))

		modules := api.Group("/modules")
		{
			modules.GET("", handlers.ListModules(moduleRegistry))
			modules.PUT("/:key", handlers.ToggleModule(moduleRegistry))
		}

		// Provider routes are gated on their module's enabled flag.
		accounts := api.Group("/accounts")
		accounts.Use(middleware.ModuleGate(moduleRegistry, emailuser.ModuleKey))
		{
			accounts.GET("", handlers.ListAccounts(repos))
		}

		globalMail := api.Group("/global-mail")
		globalMail.Use(middleware.ModuleGate(moduleRegistry, emailglobal.ModuleKey))
		{
			globalMail.GET("", handlers.GlobalMailStatus(repos))
		}
	}
}
