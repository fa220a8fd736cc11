package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sportlearn-api/api/swagger"
	"github.com/noah-isme/sportlearn-api/internal/handler"
	"github.com/noah-isme/sportlearn-api/internal/models"
	"github.com/noah-isme/sportlearn-api/internal/repository"
	"github.com/noah-isme/sportlearn-api/internal/service"
	"github.com/noah-isme/sportlearn-api/pkg/cache"
	"github.com/noah-isme/sportlearn-api/pkg/config"
	"github.com/noah-isme/sportlearn-api/pkg/database"
	"github.com/noah-isme/sportlearn-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sportlearn-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sportlearn-api/pkg/middleware/requestid"
)

// @title SportLearn API
// @version 1.0.0
// @description Sports learning platform: role-based access, form templates and form analytics
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close()

	store := repository.NewDocumentStore(db, cfg.Store.BatchLimit)
	if err := store.Migrate(ctx); err != nil {
		logr.Sugar().Fatalw("document store migration failed", "error", err)
	}

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, running without cache, rate limiting and idempotency", zap.Error(err))
	} else {
		redisClient = client
	}

	users := repository.NewUserRepository(store)
	templates := repository.NewFormTemplateRepository(store)
	responses := repository.NewFormResponseRepository(store)
	audits := repository.NewAuditRepository(store)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	provider, auth := identityServices(cfg, users, audits, validate, logr)
	credentials := service.NewCredentialValidator(provider, logr)
	authorizer := service.NewAuthorizer(service.RouteRulesFromConfig(cfg.Routes))

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)
	analytics := service.NewFormAnalyticsService(templates, responses, cacheSvc, metrics, logr,
		models.ParseTrendBatching(cfg.Analytics.Batching), cfg.Analytics.CacheTTL)

	svc := handler.Services{
		Auth:      auth,
		Users:     service.NewUserService(users, provider, audits, validate, logr),
		Templates: service.NewFormTemplateService(templates, responses, audits, analytics, validate, logr),
		Responses: service.NewFormResponseService(templates, responses, analytics, metrics, logr),
		Analytics: analytics,
		Content:   service.NewContentService(cfg.Content, &http.Client{Timeout: cfg.Content.Timeout}, validate, metrics, logr),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.NewHandlerManager(cfg, svc, handler.Infrastructure{
		Authorizer: authorizer,
		Validator:  credentials,
		Metrics:    metrics,
		Cache:      cacheRepo,
		Audit:      audits,
		Logger:     logr,
	}).SetupRoutes(r)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auth_provider", cfg.Auth.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// identityServices returns the configured provider and the sign-in service.
// Local login is disabled when sessions are minted by an external provider.
func identityServices(cfg *config.Config, users *repository.UserRepository, audits *repository.AuditRepository, validate *validator.Validate, logr *zap.Logger) (service.IdentityProvider, *service.AuthService) {
	paths := service.GuardPathsFromConfig(cfg.Routes)
	if cfg.Auth.Provider == config.AuthProviderCasdoor {
		logr.Info("using casdoor identity provider", zap.String("endpoint", cfg.Auth.Casdoor.Endpoint))
		return service.NewCasdoorIdentityProvider(cfg.Auth.Casdoor),
			service.NewAuthService(users, nil, audits, paths, validate, logr)
	}
	jwtProvider := service.NewJWTIdentityProvider(cfg.Auth.JWT, users)
	return jwtProvider, service.NewAuthService(users, jwtProvider, audits, paths, validate, logr)
}
