package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Provider  ProviderConfig
	Catalog   CatalogConfig
	Execution ExecutionConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	ExecutePerHour int
	AutoFillPerMin int
}

// ProviderConfig configures the external render provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds, per HTTP call
}

// CatalogConfig configures the asset catalog service.
type CatalogConfig struct {
	APIKey  string
	BaseURL string
}

// ExecutionConfig tunes job submission and reconciliation.
type ExecutionConfig struct {
	SubmitConcurrency int // worker pool size for submission fan-out
	ReconcileInterval int // seconds between status sweeps
	ProcessingTimeout int // seconds a job may stay processing before Timeout
	JobRetention      int // hours to keep task records in the queue
	RequiredTypes     map[string][]string // platform → required asset types
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("RENDER_API_KEY")
	readSecret("CATALOG_API_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("provider.api_key", "RENDER_API_KEY")
	_ = viper.BindEnv("provider.base_url", "RENDER_BASE_URL")
	_ = viper.BindEnv("provider.timeout", "RENDER_TIMEOUT")
	_ = viper.BindEnv("catalog.api_key", "CATALOG_API_KEY")
	_ = viper.BindEnv("catalog.base_url", "CATALOG_BASE_URL")
	_ = viper.BindEnv("execution.submit_concurrency", "SUBMIT_CONCURRENCY")
	_ = viper.BindEnv("execution.reconcile_interval", "RECONCILE_INTERVAL")
	_ = viper.BindEnv("execution.processing_timeout", "PROCESSING_TIMEOUT")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.execute_per_hour", 30)
	viper.SetDefault("ratelimit.autofill_per_min", 60)

	// Render provider defaults
	viper.SetDefault("provider.base_url", "https://api.renderform.dev")
	viper.SetDefault("provider.timeout", 60)

	// Catalog defaults
	viper.SetDefault("catalog.base_url", "http://localhost:8082")

	// Execution defaults
	viper.SetDefault("execution.submit_concurrency", 8)
	viper.SetDefault("execution.reconcile_interval", 30)
	viper.SetDefault("execution.processing_timeout", 900)
	viper.SetDefault("execution.job_retention", 24)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ExecutePerHour: viper.GetInt("ratelimit.execute_per_hour"),
			AutoFillPerMin: viper.GetInt("ratelimit.autofill_per_min"),
		},
		Provider: ProviderConfig{
			APIKey:  viper.GetString("provider.api_key"),
			BaseURL: viper.GetString("provider.base_url"),
			Timeout: viper.GetInt("provider.timeout"),
		},
		Catalog: CatalogConfig{
			APIKey:  viper.GetString("catalog.api_key"),
			BaseURL: viper.GetString("catalog.base_url"),
		},
		Execution: ExecutionConfig{
			SubmitConcurrency: viper.GetInt("execution.submit_concurrency"),
			ReconcileInterval: viper.GetInt("execution.reconcile_interval"),
			ProcessingTimeout: viper.GetInt("execution.processing_timeout"),
			JobRetention:      viper.GetInt("execution.job_retention"),
			RequiredTypes:     viper.GetStringMapStringSlice("execution.required_types"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
