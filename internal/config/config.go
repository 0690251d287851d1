package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Auth       AuthConfig
	Email      EmailConfig
	Cloudinary CloudinaryConfig
	Backend    BackendConfig
	Workflow   WorkflowConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	AllowedOrigins  []string
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	Driver string // "memory" or "postgres"
}

// DatabaseConfig holds the postgres connection used by the postgres store
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
	AutoMigrate        bool
	ConnectRetries     int
}

// CacheConfig holds cache configuration (device preferences, sign-in throttle)
type CacheConfig struct {
	Provider      string // "memory" or "redis"
	RedisURL      string
	RedisPassword string
	RedisDB       int
	PoolSize      int
	DefaultTTL    time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	BCryptCost         int
	MinPasswordLength  int
	ResetTokenTTL      time.Duration
	ResetURL           string
	MaxSignInAttempts  int
	SignInLockout      time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// EmailConfig holds outbound email configuration
type EmailConfig struct {
	Provider       string // "sendgrid" or "log"
	SendGridAPIKey string
	FromAddress    string
	FromName       string
}

// CloudinaryConfig holds media upload configuration
type CloudinaryConfig struct {
	CloudName     string
	APIKey        string
	APISecret     string
	Folder        string
	MaxFileSize   int64
	UploadTimeout time.Duration
	MaxRetries    int
}

// Enabled reports whether uploads are configured
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// WorkflowConfig tunes retries of the multi-step workflows
type WorkflowConfig struct {
	StepRetries        int
	StepInitialBackoff time.Duration
	StepMaxElapsed     time.Duration
}

// Load loads configuration from the environment
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	backend, err := LoadBackendConfig(getEnv("APP_CONFIG_PATH", "app.yaml"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server:     loadServerConfig(env),
		Store:      StoreConfig{Driver: getEnv("STORE_DRIVER", "memory")},
		Database:   loadDatabaseConfig(),
		Cache:      loadCacheConfig(),
		Auth:       loadAuthConfig(env),
		Email:      loadEmailConfig(),
		Cloudinary: loadCloudinaryConfig(),
		Backend:    *backend,
		Workflow:   loadWorkflowConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	config := ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
	if env == "development" {
		config.GracefulTimeout = getDurationEnv("GRACEFUL_TIMEOUT", 10*time.Second)
	}
	return config
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:                getEnv("DATABASE_URL", ""),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "migrations"),
		AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", true),
		ConnectRetries:     getIntEnv("DB_CONNECT_RETRIES", 5),
	}
}

func loadCacheConfig() CacheConfig {
	provider := "memory"
	if getEnv("REDIS_URL", "") != "" {
		provider = "redis"
	}
	return CacheConfig{
		Provider:      getEnv("CACHE_PROVIDER", provider),
		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
		DefaultTTL:    getDurationEnv("CACHE_DEFAULT_TTL", 15*time.Minute),
	}
}

func loadAuthConfig(env string) AuthConfig {
	secret := getEnv("JWT_SECRET", "")
	if secret == "" && env != "production" {
		secret = "bridgeus-development-secret"
	}
	return AuthConfig{
		JWTSecret:          secret,
		TokenTTL:           getDurationEnv("AUTH_TOKEN_TTL", time.Hour),
		BCryptCost:         getIntEnv("BCRYPT_COST", 12),
		MinPasswordLength:  getIntEnv("MIN_PASSWORD_LENGTH", 6),
		ResetTokenTTL:      getDurationEnv("PASSWORD_RESET_TTL", time.Hour),
		ResetURL:           getEnv("PASSWORD_RESET_URL", "bridgeus://reset-password"),
		MaxSignInAttempts:  getIntEnv("MAX_SIGNIN_ATTEMPTS", 10),
		SignInLockout:      getDurationEnv("SIGNIN_LOCKOUT", 15*time.Minute),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
	}
}

func loadEmailConfig() EmailConfig {
	provider := "log"
	if getEnv("SENDGRID_API_KEY", "") != "" {
		provider = "sendgrid"
	}
	return EmailConfig{
		Provider:       getEnv("EMAIL_PROVIDER", provider),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		FromAddress:    getEnv("EMAIL_FROM_ADDRESS", "noreply@bridgeus.jp"),
		FromName:       getEnv("EMAIL_FROM_NAME", "BridgeUs"),
	}
}

func loadCloudinaryConfig() CloudinaryConfig {
	return CloudinaryConfig{
		CloudName:     getEnv("CLOUDINARY_CLOUD_NAME", ""),
		APIKey:        getEnv("CLOUDINARY_API_KEY", ""),
		APISecret:     getEnv("CLOUDINARY_API_SECRET", ""),
		Folder:        getEnv("CLOUDINARY_FOLDER", "bridgeus"),
		MaxFileSize:   getInt64Env("MAX_FILE_SIZE", 5*1024*1024),
		UploadTimeout: getDurationEnv("CLOUDINARY_UPLOAD_TIMEOUT", 30*time.Second),
		MaxRetries:    getIntEnv("CLOUDINARY_MAX_RETRIES", 3),
	}
}

func loadWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		StepRetries:        getIntEnv("WORKFLOW_STEP_RETRIES", 3),
		StepInitialBackoff: getDurationEnv("WORKFLOW_STEP_BACKOFF", 200*time.Millisecond),
		StepMaxElapsed:     getDurationEnv("WORKFLOW_STEP_MAX_ELAPSED", 5*time.Second),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.Cache.Provider == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis cache"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}
	if c.Auth.MinPasswordLength < 6 {
		errs = append(errs, errors.New("MIN_PASSWORD_LENGTH must be at least 6"))
	}

	if c.Email.Provider == "sendgrid" && c.Email.SendGridAPIKey == "" {
		errs = append(errs, errors.New("SENDGRID_API_KEY is required for the sendgrid provider"))
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server timeouts must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
