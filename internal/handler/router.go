package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sportlearn-api/internal/middleware"
	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/config"
)

// Services groups the business services exposed over HTTP.
type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Templates *service.FormTemplateService
	Responses *service.FormResponseService
	Analytics *service.FormAnalyticsService
	Content   *service.ContentService
}

// Infrastructure groups what the routing middleware needs.
type Infrastructure struct {
	Authorizer *service.Authorizer
	Validator  *service.CredentialValidator
	Metrics    *service.MetricsService
	Cache      *repository.CacheRepository
	Audit      *repository.AuditRepository
	Logger     *zap.Logger
}

// HandlerManager owns every handler and mounts them on an engine.
type HandlerManager struct {
	cfg   *config.Config
	infra Infrastructure

	auth      *AuthHandler
	users     *UserHandler
	templates *FormTemplateHandler
	responses *FormResponseHandler
	analytics *FormAnalyticsHandler
	content   *ContentHandler
	metrics   *MetricsHandler
	pages     *PageHandler
}

// NewHandlerManager builds the handlers.
func NewHandlerManager(cfg *config.Config, svc Services, infra Infrastructure) *HandlerManager {
	if infra.Logger == nil {
		infra.Logger = zap.NewNop()
	}
	return &HandlerManager{
		cfg:       cfg,
		infra:     infra,
		auth:      NewAuthHandler(svc.Auth),
		users:     NewUserHandler(svc.Users),
		templates: NewFormTemplateHandler(svc.Templates),
		responses: NewFormResponseHandler(svc.Responses),
		analytics: NewFormAnalyticsHandler(svc.Analytics),
		content:   NewContentHandler(svc.Content),
		metrics:   NewMetricsHandler(infra.Metrics),
		pages:     NewPageHandler(svc.Auth),
	}
}

// SetupRoutes installs the authorization middleware on the engine and registers every route.
// Must be called before any other route is added so edge checks see all requests.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	infra := hm.infra
	guardPaths := service.GuardPathsFromConfig(hm.cfg.Routes)

	router.Use(middleware.Metrics(infra.Metrics))
	router.Use(middleware.DeniedRateLimit(infra.Cache, hm.cfg.RateLimit, infra.Metrics, infra.Logger))
	router.Use(middleware.EdgeAuthorization(infra.Authorizer, infra.Validator, infra.Metrics, infra.Logger))
	router.Use(middleware.RateLimit(infra.Cache, hm.cfg.RateLimit, infra.Metrics, infra.Logger))
	router.Use(middleware.WithResponseMeta())

	router.GET("/health", hm.metrics.Health)
	router.GET("/ready", hm.metrics.Health)
	router.GET("/metrics", hm.metrics.Prometheus)

	guest := middleware.PageGuard(service.GuardGuest, infra.Validator, guardPaths, hm.cfg.Routes.SessionCookie)
	protected := middleware.PageGuard(service.GuardProtected, infra.Validator, guardPaths, hm.cfg.Routes.SessionCookie)
	router.GET(hm.cfg.Routes.LoginPath, guest, hm.pages.Render)
	router.GET("/signup", guest, hm.pages.Render)
	router.GET(hm.cfg.Routes.DashboardPath, protected, hm.pages.Render)
	router.GET(hm.cfg.Routes.AdminHome, protected, hm.pages.Render)

	staff := middleware.RequireRoles(models.RoleCoach, models.RoleAdmin)

	api := router.Group(hm.cfg.APIPrefix)
	{
		api.POST("/auth/login", hm.auth.Login)
		api.GET("/session", hm.auth.Session)

		forms := api.Group("/forms")
		{
			forms.GET("", hm.templates.List)
			forms.POST("", staff, hm.templates.Create)
			forms.GET("/:id", hm.templates.Get)
			forms.PUT("/:id", staff, hm.templates.Update)
			forms.POST("/:id/archive", staff, hm.templates.Archive)
			forms.DELETE("/:id", staff, hm.templates.Delete)

			forms.POST("/:id/responses",
				middleware.RequireRoles(models.RoleStudent),
				middleware.Idempotency(infra.Cache, hm.cfg.Idempotency.TTL, infra.Logger),
				hm.responses.Submit,
			)
			forms.GET("/:id/responses", staff, hm.responses.List)
			forms.GET("/:id/responses/mine", hm.responses.ListMine)

			forms.GET("/:id/analytics", hm.analytics.Analytics)
			forms.GET("/:id/analytics/export", hm.analytics.Export)
		}

		content := api.Group("/content")
		{
			content.POST("/generate", staff,
				middleware.Audit(infra.Audit, infra.Logger, models.AuditActionContentGenerate, "content"),
				hm.content.Generate,
			)
			content.POST("/grade",
				middleware.RequireRoles(models.RoleStudent, models.RoleCoach, models.RoleAdmin),
				middleware.Audit(infra.Audit, infra.Logger, models.AuditActionContentGrade, "content"),
				hm.content.Grade,
			)
		}

		// Admin role is enforced by EdgeAuthorization for everything under this group.
		admin := api.Group("/admin")
		{
			admin.GET("/users", hm.users.List)
			admin.POST("/users", hm.users.Create)
			admin.GET("/users/:id", hm.users.Get)
			admin.PUT("/users/:id/role", hm.users.SetRole)
			admin.GET("/system/metrics", hm.metrics.System)
		}
	}
}
