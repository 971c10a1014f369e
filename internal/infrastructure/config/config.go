// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Merge orders for the recipe router
const (
	MergePreparedFirst    = "prepared_first"
	MergeIngredientsFirst = "ingredients_first"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Recipes    RecipesConfig    `mapstructure:"recipes"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Startup    StartupConfig    `mapstructure:"startup"`

	v *viper.Viper
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development test production"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format" validate:"oneof=json console"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" validate:"gt=0"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	StaticDir       string        `mapstructure:"static_dir"`
}

// DetectionConfig configures the detection backend and the detector adapter
type DetectionConfig struct {
	Backend             string        `mapstructure:"backend" validate:"oneof=yolo stream"`
	Endpoint            string        `mapstructure:"endpoint" validate:"required"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxImageBytes       int64         `mapstructure:"max_image_bytes" validate:"gt=0"`
	TempDir             string        `mapstructure:"temp_dir"`
}

// RecipesConfig configures the recipe backend and the recipe router
type RecipesConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DefaultLimit      int           `mapstructure:"default_limit" validate:"min=1"`
	MaxLimit          int           `mapstructure:"max_limit" validate:"gtefield=DefaultLimit"`
	DetailConcurrency int           `mapstructure:"detail_concurrency" validate:"min=1"`
	MergeOrder        string        `mapstructure:"merge_order" validate:"oneof=prepared_first ingredients_first"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"min=1"`
}

// CacheConfig selects and tunes the recipe cache
type CacheConfig struct {
	Provider string        `mapstructure:"provider" validate:"oneof=redis memory none"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig contains inbound rate limiting configuration
type RateLimitConfig struct {
	Enable         bool `mapstructure:"enable"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	BurstSize      int  `mapstructure:"burst_size"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	MetricsPath     string  `mapstructure:"metrics_path"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	TraceExporter   string  `mapstructure:"trace_exporter" validate:"oneof=otlp jaeger"`
	TraceEndpoint   string  `mapstructure:"trace_endpoint"`
	SamplingRate    float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
	LivenessPath    string  `mapstructure:"liveness_path"`
}

// StartupConfig bounds the retries used while constructing components
type StartupConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is applied to the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fooder")
	}

	v.SetEnvPrefix("FOODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names used by existing deployments
	_ = v.BindEnv("recipes.api_key", "FOODER_RECIPES_API_KEY", "SPOONACULAR_API_KEY")
	_ = v.BindEnv("detection.confidence_threshold", "FOODER_DETECTION_CONFIDENCE_THRESHOLD", "DETECTION_CONFIDENCE")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.v = v

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fooder")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 16<<20) // base64 overhead on a 10MB image
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.static_dir", "")

	v.SetDefault("detection.backend", "yolo")
	v.SetDefault("detection.endpoint", "http://localhost:8000")
	v.SetDefault("detection.confidence_threshold", 0.3)
	v.SetDefault("detection.timeout", "20s")
	v.SetDefault("detection.max_image_bytes", 10*1024*1024)
	v.SetDefault("detection.temp_dir", "")

	v.SetDefault("recipes.api_key", "")
	v.SetDefault("recipes.base_url", "https://api.spoonacular.com/recipes")
	v.SetDefault("recipes.timeout", "10s")
	v.SetDefault("recipes.default_limit", 5)
	v.SetDefault("recipes.max_limit", 20)
	v.SetDefault("recipes.detail_concurrency", 4)
	v.SetDefault("recipes.merge_order", MergePreparedFirst)
	v.SetDefault("recipes.requests_per_second", 5)
	v.SetDefault("recipes.burst", 5)

	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("cache.prefix", "fooder:")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.trace_exporter", "otlp")
	v.SetDefault("monitoring.trace_endpoint", "localhost:4318")
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")
	v.SetDefault("monitoring.liveness_path", "/live")

	v.SetDefault("startup.max_attempts", 3)
	v.SetDefault("startup.retry_delay", "2s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Watch calls onChange whenever the loaded config file changes.
// It returns false when configuration did not come from a file.
func (c *Config) Watch(onChange func(fsnotify.Event)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}
	c.v.OnConfigChange(onChange)
	c.v.WatchConfig()
	return true
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Address returns the HTTP listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
