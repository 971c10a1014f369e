// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/application/detection"
	"github.com/fooder/fooder/internal/application/recipe"
	"github.com/fooder/fooder/internal/application/scan"
	"github.com/fooder/fooder/internal/domain/food"
	"github.com/fooder/fooder/internal/infrastructure/cache"
	"github.com/fooder/fooder/internal/infrastructure/config"
	"github.com/fooder/fooder/internal/infrastructure/detection/stream"
	"github.com/fooder/fooder/internal/infrastructure/detection/yolo"
	"github.com/fooder/fooder/internal/infrastructure/http/handlers"
	"github.com/fooder/fooder/internal/infrastructure/http/middleware"
	"github.com/fooder/fooder/internal/infrastructure/http/server"
	"github.com/fooder/fooder/internal/infrastructure/monitoring"
	"github.com/fooder/fooder/internal/infrastructure/recipes/spoonacular"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/internal/ports/outbound"
	"github.com/fooder/fooder/pkg/errors"
	"github.com/fooder/fooder/pkg/healthcheck"
	"github.com/fooder/fooder/pkg/logger"
)

// Detection backends
const (
	BackendYOLO   = "yolo"
	BackendStream = "stream"
)

// Cache providers
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

const memorySweepInterval = time.Minute

// ConfigPath is the config file to load; empty searches the default locations
type ConfigPath string

// Module provides the full HTTP application
var Module = fx.Options(
	CoreModule,
	HTTPModule,
	LifecycleModule,
)

// CoreModule provides everything behind the scan use case, without HTTP
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	DetectionModule,
	RecipeModule,
	ServiceModule,
	fx.Invoke(registerCoreHooks),
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		cfg, err := config.Load(string(path))
		if err != nil {
			return nil, errors.NewConfigurationError(err.Error())
		}
		return cfg, nil
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
			ServiceName: cfg.App.Name,
		})
	},
)

// MonitoringModule provides metrics and tracing
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			Exporter:       cfg.Monitoring.TraceExporter,
			Endpoint:       cfg.Monitoring.TraceEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
	},
)

// DetectionModule provides the detection backend and the food detector
var DetectionModule = fx.Provide(
	food.DefaultVocabulary,
	NewDetectionBackend,
	fx.Annotate(
		func(backend outbound.DetectionBackend, vocab *food.Vocabulary, cfg *config.Config, log *zap.Logger) (*detection.Service, error) {
			return detection.NewService(backend, vocab, cfg.Detection.ConfidenceThreshold, log)
		},
		fx.As(new(inbound.FoodDetector)),
	),
)

// RecipeModule provides the recipe backend, its cache and the recipe router
var RecipeModule = fx.Provide(
	NewRecipeBackend,
	fx.Annotate(
		func(provider outbound.RecipeProvider, vocab *food.Vocabulary, cfg *config.Config, log *zap.Logger) (*recipe.Router, error) {
			return recipe.NewRouter(provider, vocab, recipe.Config{
				APIKey:            cfg.Recipes.APIKey,
				DefaultLimit:      cfg.Recipes.DefaultLimit,
				MaxLimit:          cfg.Recipes.MaxLimit,
				DetailConcurrency: cfg.Recipes.DetailConcurrency,
				MergeOrder:        cfg.Recipes.MergeOrder,
			}, log)
		},
		fx.As(new(inbound.RecipeFinder)),
	),
)

// ServiceModule provides the scan use case and the health checks
var ServiceModule = fx.Provide(
	fx.Annotate(
		func(
			detector inbound.FoodDetector,
			finder inbound.RecipeFinder,
			metrics *monitoring.MetricsCollector,
			cfg *config.Config,
			log *zap.Logger,
		) *scan.Service {
			return scan.NewService(detector, finder, metrics, scan.Config{
				MaxImageBytes: cfg.Detection.MaxImageBytes,
				TempDir:       cfg.Detection.TempDir,
				SlowThreshold: cfg.Server.RequestTimeout,
			}, log)
		},
		fx.As(new(inbound.ScanService)),
	),
	NewHealthCheck,
)

// HTTPModule provides the HTTP server
var HTTPModule = fx.Provide(
	func(cfg *config.Config, tracing *monitoring.TracingProvider, log *zap.Logger) *middleware.Middleware {
		if !cfg.App.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		return middleware.New(cfg, tracing, log)
	},
	handlers.NewScanHandlers,
	server.NewServer,
)

// LifecycleModule starts and stops the HTTP server
var LifecycleModule = fx.Invoke(RegisterLifecycleHooks)

// NewDetectionBackend connects to the configured detection backend under the startup retry budget
func NewDetectionBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (outbound.DetectionBackend, error) {
	det := cfg.Detection

	var connect func(ctx context.Context) (outbound.DetectionBackend, error)
	switch det.Backend {
	case BackendYOLO:
		connect = func(ctx context.Context) (outbound.DetectionBackend, error) {
			client, err := yolo.NewClient(ctx, yolo.Config{BaseURL: det.Endpoint, Timeout: det.Timeout}, log)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	case BackendStream:
		connect = func(ctx context.Context) (outbound.DetectionBackend, error) {
			client, err := stream.NewClient(ctx, stream.Config{Endpoint: det.Endpoint, Timeout: det.Timeout}, log)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	default:
		return nil, errors.NewConfigurationError(fmt.Sprintf("unknown detection backend %q", det.Backend))
	}

	backend, err := Retry(context.Background(), cfg.Startup, log, "detection-backend", connect)
	if err != nil {
		return nil, errors.NewDetectionError(err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return backend.Close()
		},
	})

	log.Info("Detection backend connected",
		zap.String("backend", det.Backend),
		zap.String("endpoint", det.Endpoint),
		zap.Int("classes", len(backend.ClassNames())),
	)
	return backend, nil
}

// CacheStore is a cache repository that owns a connection or sweeper
type CacheStore interface {
	outbound.CacheRepository
	Close() error
}

// RecipeCache is the store behind the caching provider
type RecipeCache struct {
	Store CacheStore
}

// RecipeBackend is the recipe provider chain. Cache is nil when caching is off.
type RecipeBackend struct {
	fx.Out

	Provider outbound.RecipeProvider
	Client   *spoonacular.Client
	Cache    *RecipeCache
}

// NewRecipeBackend builds the Spoonacular client and wraps it in the configured cache
func NewRecipeBackend(
	lc fx.Lifecycle,
	cfg *config.Config,
	metrics *monitoring.MetricsCollector,
	log *zap.Logger,
) (RecipeBackend, error) {
	client := spoonacular.NewClient(spoonacular.Config{
		APIKey:            cfg.Recipes.APIKey,
		BaseURL:           cfg.Recipes.BaseURL,
		Timeout:           cfg.Recipes.Timeout,
		RequestsPerSecond: cfg.Recipes.RequestsPerSecond,
		Burst:             cfg.Recipes.Burst,
	}, metrics, log)

	out := RecipeBackend{Provider: client, Client: client}

	var store CacheStore
	switch cfg.Cache.Provider {
	case CacheNone:
		return out, nil
	case CacheMemory:
		store = cache.NewMemoryCache(memorySweepInterval)
	case CacheRedis:
		redisCache, err := Retry(context.Background(), cfg.Startup, log, "redis",
			func(ctx context.Context) (*cache.RedisCache, error) {
				return cache.NewRedisCache(ctx, cfg.Redis, cfg.Cache.Prefix, log)
			})
		if err != nil {
			return RecipeBackend{}, errors.NewExternalServiceError("redis", err)
		}
		store = redisCache
	default:
		return RecipeBackend{}, errors.NewConfigurationError(fmt.Sprintf("unknown cache provider %q", cfg.Cache.Provider))
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})

	out.Provider = cache.NewCachingRecipeProvider(client, store, cfg.Cache.TTL, metrics, log)
	out.Cache = &RecipeCache{Store: store}
	log.Info("Recipe cache enabled",
		zap.String("provider", cfg.Cache.Provider),
		zap.Duration("ttl", cfg.Cache.TTL),
	)
	return out, nil
}

// HealthParams are the components reported by the health endpoints
type HealthParams struct {
	fx.In

	Config  *config.Config
	Backend outbound.DetectionBackend
	Client  *spoonacular.Client
	Cache   *RecipeCache
	Logger  *zap.Logger
}

// NewHealthCheck registers one checker per external dependency.
// Only the detector is critical; the service still answers without recipes or cache.
func NewHealthCheck(p HealthParams) *healthcheck.HealthCheck {
	health := healthcheck.New(p.Config.App.Version, p.Logger)

	health.Register("detector", healthcheck.NewPingChecker(p.Backend.Ping, true))
	health.Register("recipes", healthcheck.NewPingChecker(p.Client.Ping, false))
	if p.Cache != nil {
		health.Register("cache", healthcheck.NewPingChecker(p.Cache.Store.Ping, false))
	}

	return health
}

func registerCoreHooks(lc fx.Lifecycle, cfg *config.Config, tracing *monitoring.TracingProvider, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("Components ready",
				zap.String("service", cfg.App.Name),
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("detection_backend", cfg.Detection.Backend),
				zap.String("cache", cfg.Cache.Provider),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := tracing.Shutdown(ctx); err != nil {
				log.Warn("Tracing shutdown failed", zap.Error(err))
			}
			_ = log.Sync()
			return nil
		},
	})
}

// RegisterLifecycleHooks starts the HTTP server with the application
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	srv *server.Server,
	cfg *config.Config,
	log *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(); err != nil {
				return err
			}
			if cfg.Watch(func(e fsnotify.Event) {
				log.Warn("Configuration file changed, restart required to apply",
					zap.String("file", e.Name),
					zap.String("op", e.Op.String()),
				)
			}) {
				log.Info("Watching configuration file for changes")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
