package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Broker        BrokerConfig        `yaml:"broker"`
	App           AppConfig           `yaml:"app"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	DBName        string `yaml:"name"`
	SSLMode       string `yaml:"sslmode"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// CacheConfig holds the Redis caching layer configuration.
// An empty Host disables the cache.
type CacheConfig struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// BrokerConfig holds RabbitMQ settings for lifecycle events.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment      string `yaml:"environment"` // "development", "staging", "production"
	Storage          string `yaml:"storage"`     // "postgres" or "memory"
	BaseURL          string `yaml:"base_url"`    // Base URL for generating short links
	ShortCodeLen     int    `yaml:"short_code_length"`
	ShortCodeRetries int    `yaml:"short_code_retries"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Admin     AdminConfig   `yaml:"admin"`
}

// AdminConfig describes the administrator account seeded at startup.
// An empty Email disables seeding.
type AdminConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Enabled reports whether an admin account should be seeded
func (a *AdminConfig) Enabled() bool {
	return a.Email != ""
}

// ObservabilityConfig holds logging and tracing settings
type ObservabilityConfig struct {
	ServiceName      string  `yaml:"service_name"`
	LogLevel         string  `yaml:"log_level"`     // empty keeps the environment default
	OTLPEndpoint     string  `yaml:"otlp_endpoint"` // empty means no export
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          "5432",
			User:          "shortlink",
			Password:      "shortlink_secret",
			DBName:        "shortlink",
			SSLMode:       "disable",
			RunMigrations: true,
		},
		Cache: CacheConfig{
			Port: "6379",
			TTL:  10 * time.Minute,
		},
		Broker: BrokerConfig{
			Exchange: "shortlink.events",
		},
		App: AppConfig{
			Environment:      "development",
			Storage:          StoragePostgres,
			BaseURL:          "http://localhost:8080",
			ShortCodeLen:     8,
			ShortCodeRetries: 5,
		},
		Auth: AuthConfig{
			JWTSecret: "change-me",
			TokenTTL:  time.Hour,
			Admin:     AdminConfig{Username: "admin"},
		},
		Observability: ObservabilityConfig{
			ServiceName:      "shortlink-gateway",
			TraceSampleRatio: 1,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing order of precedence.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.RunMigrations = getEnvBool("DB_RUN_MIGRATIONS", cfg.Database.RunMigrations)

	cfg.Cache.Host = getEnv("RDB_HOST", cfg.Cache.Host)
	cfg.Cache.Port = getEnv("RDB_PORT", cfg.Cache.Port)
	cfg.Cache.User = getEnv("RDB_USER", cfg.Cache.User)
	cfg.Cache.Password = getEnv("RDB_PASSWORD", cfg.Cache.Password)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", cfg.Cache.TTL)

	cfg.Broker.URL = getEnv("AMQP_URL", cfg.Broker.URL)
	cfg.Broker.Exchange = getEnv("AMQP_EXCHANGE", cfg.Broker.Exchange)

	cfg.App.Environment = getEnv("APP_ENV", cfg.App.Environment)
	cfg.App.Storage = getEnv("STORAGE", cfg.App.Storage)
	cfg.App.BaseURL = strings.TrimRight(getEnv("BASE_URL", cfg.App.BaseURL), "/")
	cfg.App.ShortCodeLen = getEnvInt("SHORT_CODE_LENGTH", cfg.App.ShortCodeLen)
	cfg.App.ShortCodeRetries = getEnvInt("SHORT_CODE_MAX_RETRIES", cfg.App.ShortCodeRetries)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = getEnvDuration("JWT_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.Admin.Username = getEnv("ADMIN_USERNAME", cfg.Auth.Admin.Username)
	cfg.Auth.Admin.Email = getEnv("ADMIN_EMAIL", cfg.Auth.Admin.Email)
	cfg.Auth.Admin.Password = getEnv("ADMIN_PASSWORD", cfg.Auth.Admin.Password)

	cfg.Observability.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Observability.ServiceName)
	cfg.Observability.LogLevel = getEnv("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observability.OTLPEndpoint)
	cfg.Observability.TraceSampleRatio = getEnvFloat("OTEL_TRACES_SAMPLER_ARG", cfg.Observability.TraceSampleRatio)
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.App.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.App.Storage)
	}
	if c.App.ShortCodeRetries < 1 {
		return fmt.Errorf("config: SHORT_CODE_MAX_RETRIES must be at least 1")
	}
	if r := c.Observability.TraceSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: OTEL_TRACES_SAMPLER_ARG must be between 0 and 1, got %v", r)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	if c.Auth.Admin.Enabled() && (c.Auth.Admin.Password == "" || c.Auth.Admin.Username == "") {
		return fmt.Errorf("config: ADMIN_EMAIL requires ADMIN_USERNAME and ADMIN_PASSWORD")
	}
	if c.App.Environment == "production" && c.Auth.JWTSecret == defaults().Auth.JWTSecret {
		return fmt.Errorf("config: JWT_SECRET must be set in production")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Enabled reports whether a Redis host is configured
func (c *CacheConfig) Enabled() bool {
	return c.Host != ""
}

// ConnectionString returns the Redis connection string
func (c *CacheConfig) ConnectionString() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/0", c.User, c.Password, c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
