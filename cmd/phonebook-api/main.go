package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/phonebook-api/api/swagger"
	"github.com/noah-isme/phonebook-api/internal/handler"
	"github.com/noah-isme/phonebook-api/internal/middleware"
	"github.com/noah-isme/phonebook-api/internal/models"
	"github.com/noah-isme/phonebook-api/internal/repository"
	"github.com/noah-isme/phonebook-api/internal/service"
	"github.com/noah-isme/phonebook-api/pkg/cache"
	"github.com/noah-isme/phonebook-api/pkg/config"
	"github.com/noah-isme/phonebook-api/pkg/database"
	"github.com/noah-isme/phonebook-api/pkg/export"
	"github.com/noah-isme/phonebook-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/phonebook-api/pkg/middleware/requestid"
	"github.com/noah-isme/phonebook-api/pkg/thumbnail"
)

// @title Phonebook API
// @version 1.0.0
// @description Staff directory with a per person change history.
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	mode, err := thumbnail.ParseResizeMode(cfg.Thumbnail.Mode)
	if err != nil {
		logr.Fatal("invalid thumbnail configuration", zap.Error(err))
	}
	references, err := service.ParseReferencePolicy(cfg.Directory.ReferencePolicy)
	if err != nil {
		logr.Fatal("invalid change log configuration", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "phonebook", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.ChangeLog.CacheTTL, logr, redisClient != nil && cfg.ChangeLog.CacheEnabled)

	personRepo := repository.NewPersonRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	changeRepo := repository.NewChangeLogRepository(db)

	thumbs := thumbnail.New(thumbnail.Options{
		Width:     cfg.Thumbnail.Width,
		Height:    cfg.Thumbnail.Height,
		Mode:      mode,
		MaxPixels: cfg.Thumbnail.MaxPixels,
	})
	describer := service.NewChangeDescriber(service.NewInstrumentedThumbnailer(thumbs, metrics), references)

	exporters := map[string]service.Exporter{
		"csv":  export.NewCSVExporter(),
		"pdf":  export.NewPDFExporter(cfg.Export.PDFFontPath),
		"xlsx": export.NewXLSXExporter(),
	}
	changeSvc := service.NewChangeLogService(changeRepo, personRepo, cacheSvc, exporters, logr, service.ChangeLogServiceConfig{CacheTTL: cfg.ChangeLog.CacheTTL})
	personSvc := service.NewPersonService(db, personRepo, roleRepo, departmentRepo, changeRepo, describer, thumbs, changeSvc, metrics, validator.New(), logr, service.PersonServiceConfig{
		EmailDomain:     cfg.Directory.EmailDomain,
		TeacherRoleName: cfg.Directory.TeacherRoleName,
		MaxPhotoBytes:   cfg.Photos.MaxUploadBytes,
	})
	lookupSvc := service.NewLookupService(roleRepo, departmentRepo, cacheSvc)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Audience: cfg.JWT.Audience})

	personHandler := handler.NewPersonHandler(personSvc, cfg.Photos.MaxUploadBytes)
	changeHandler := handler.NewChangeLogHandler(changeSvc)
	lookupHandler := handler.NewLookupHandler(lookupSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Photos.MaxUploadBytes + 1<<20

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(tokens))
	api.GET("/roles", lookupHandler.Roles)
	api.GET("/departments", lookupHandler.Departments)
	api.GET("/people", personHandler.List)
	api.GET("/people/:id", personHandler.Get)
	api.GET("/people/:id/changes", changeHandler.History)
	api.GET("/people/:id/changes/latest", changeHandler.Latest)

	editors := api.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	editors.POST("/people", personHandler.Create)
	editors.PUT("/people/:id", personHandler.Update)
	editors.DELETE("/people/:id", personHandler.Delete)
	editors.POST("/people/:id/restore", personHandler.Restore)
	editors.GET("/people/:id/changes/export", changeHandler.Export)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", reqidmiddleware.HeaderKey},
		ExposedHeaders:   []string{"Content-Disposition", reqidmiddleware.HeaderKey},
		MaxAge:           600,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
