package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/scholarhub-api/internal/handler"
	"github.com/noah-isme/scholarhub-api/internal/middleware"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/repository"
	"github.com/noah-isme/scholarhub-api/internal/service"
	"github.com/noah-isme/scholarhub-api/pkg/config"
	"github.com/noah-isme/scholarhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/scholarhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/scholarhub-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth         *service.AuthService
	users        *service.UserService
	scholarships *service.ScholarshipService
	forms        *service.ApplicationFormService
	dashboard    *service.DashboardService
	profiles     *service.StudentProfileService
	settings     *service.SettingsService
	exports      *service.ExportJobService
	metrics      *service.MetricsService
	audit        *repository.UserRepository
	checks       map[string]handler.Pinger
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, cfg.Log.QuietPaths...))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(deps.auth)
	adminOnly := middleware.Allow(middleware.Staff)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	authHandler := handler.NewAuthHandler(deps.auth)
	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.POST("/change-password", requireAuth, authHandler.ChangePassword)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	scholarshipHandler := handler.NewScholarshipHandler(deps.scholarships)
	formHandler := handler.NewApplicationFormHandler(deps.forms)
	scholarships := api.Group("/scholarships")
	scholarships.GET("", middleware.OptionalJWT(deps.auth), scholarshipHandler.List)
	scholarships.GET("/stats", middleware.OptionalJWT(deps.auth), scholarshipHandler.Stats)
	scholarships.GET("/:id", scholarshipHandler.Get)
	scholarships.GET("/:id/form", formHandler.URL)
	scholarships.POST("", requireAuth, adminOnly, scholarshipHandler.Create)
	scholarships.POST("/import", requireAuth, adminOnly, scholarshipHandler.Import)
	scholarships.PUT("/:id", requireAuth, adminOnly, scholarshipHandler.Update)
	scholarships.DELETE("/:id", requireAuth, adminOnly, scholarshipHandler.Delete)
	scholarships.POST("/:id/form", requireAuth, adminOnly, formHandler.Upload)
	api.GET("/files/:token", formHandler.Download)

	if cfg.Dashboard.Enabled {
		dashboardHandler := handler.NewDashboardHandler(deps.dashboard)
		api.GET("/dashboard/admin", requireAuth, adminOnly, dashboardHandler.Admin)
		api.GET("/dashboard/student", requireAuth, studentOnly, dashboardHandler.Student)
	} else {
		api.GET("/dashboard/*any", handler.FeatureDisabled)
	}

	profileHandler := handler.NewProfileHandler(deps.profiles)
	api.GET("/me/profile", requireAuth, studentOnly, profileHandler.Get)
	api.PUT("/me/profile", requireAuth, studentOnly, profileHandler.Update)

	userHandler := handler.NewUserHandler(deps.users)
	users := api.Group("/users", requireAuth)
	users.GET("", adminOnly, userHandler.List)
	users.POST("", adminOnly, userHandler.Create)
	users.GET("/:id", middleware.Allow(middleware.Staff, middleware.Self("id")), userHandler.Get)
	users.PUT("/:id", adminOnly, userHandler.Update)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	if cfg.Settings.Enabled {
		settingsHandler := handler.NewSettingsHandler(deps.settings)
		settings := api.Group("/settings", requireAuth, adminOnly)
		settings.GET("", settingsHandler.List)
		settings.PUT("/bulk", settingsHandler.BulkUpdate)
		settings.GET("/:key", settingsHandler.Get)
		settings.PUT("/:key", settingsHandler.Update)
		settings.DELETE("/:key", settingsHandler.Reset)
	} else {
		api.Any("/settings/*any", handler.FeatureDisabled)
	}

	if deps.exports != nil {
		exportHandler := handler.NewExportHandler(deps.exports)
		api.POST("/exports", requireAuth, adminOnly,
			middleware.Audit(deps.audit, logr, models.AuditActionExportCreate, "export_job"),
			exportHandler.Create)
		api.GET("/exports/:id", requireAuth, adminOnly, exportHandler.Status)
		api.GET("/exports/download/:token", exportHandler.Download)
	} else {
		api.Any("/exports", handler.FeatureDisabled)
		api.Any("/exports/*any", handler.FeatureDisabled)
	}

	api.GET("/metrics/system", requireAuth, adminOnly, metricsHandler.System)

	return r
}
