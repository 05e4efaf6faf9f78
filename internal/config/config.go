// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for our application
type Config struct {
	App           AppConfig
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Security      SecurityConfig
	External      ExternalConfig
	Replenishment ReplenishmentConfig
	Logging       LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	RateLimitBurst     int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
}

// ExternalConfig contains external service configurations
type ExternalConfig struct {
	Stripe StripeConfig
	Email  EmailConfig
}

// StripeConfig contains Stripe payment configuration
type StripeConfig struct {
	SecretKey   string
	BaseURL     string
	Environment string
	Currency    string
}

// EmailConfig contains email service configuration
type EmailConfig struct {
	Provider    string
	APIKey      string
	FromEmail   string
	FromName    string
	BaseURL     string
	TemplateDir string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// ReplenishmentConfig contains the auto-reorder engine configuration
type ReplenishmentConfig struct {
	Timezone            string        // IANA zone the business calendar runs in
	DailyRunHour        int           // local hour the consumption job fires
	DailyAutoOrderLimit int           // auto orders allowed per client per day
	DedupWindow         time.Duration // duplicate trigger suppression window
	LockTTL             time.Duration // per-request guard lock lifetime
	ReleaseTimeout      time.Duration // unpaid order grace period
	SweepInterval       time.Duration // release sweep cadence
	SettlementTimeout   time.Duration // upper bound for one charge attempt
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "MedSupply Backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:         getEnv("APP_PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "medsupply_db"),
			User:         getEnv("DB_USER", "medsupply_user"),
			Password:     getEnv("DB_PASSWORD", "medsupply_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-super-secret-jwt-key-change-in-production"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 50),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		External: ExternalConfig{
			Stripe: StripeConfig{
				SecretKey:   getEnv("STRIPE_SECRET_KEY", ""),
				BaseURL:     getEnv("STRIPE_BASE_URL", "https://api.stripe.com/v1"),
				Environment: getEnv("STRIPE_ENVIRONMENT", "test"),
				Currency:    getEnv("STRIPE_CURRENCY", "usd"),
			},
			Email: EmailConfig{
				Provider:    getEnv("EMAIL_PROVIDER", "smtp"),
				APIKey:      getEnv("EMAIL_API_KEY", ""),
				FromEmail:   getEnv("FROM_EMAIL", "orders@medsupply.example.com"),
				FromName:    getEnv("FROM_NAME", "MedSupply Orders"),
				BaseURL:     getEnv("EMAIL_BASE_URL", "http://localhost:3000"),
				TemplateDir: getEnv("EMAIL_TEMPLATE_DIR", "./templates/emails"),
				SMTPHost:    getEnv("SMTP_HOST", ""),
				SMTPPort:    getEnvAsInt("SMTP_PORT", 587),
				SMTPUser:    getEnv("SMTP_USER", ""),
				SMTPPass:    getEnv("SMTP_PASS", ""),
			},
		},
		Replenishment: ReplenishmentConfig{
			Timezone:            getEnv("REPLENISH_TIMEZONE", "UTC"),
			DailyRunHour:        getEnvAsInt("REPLENISH_RUN_HOUR", 6),
			DailyAutoOrderLimit: getEnvAsInt("REPLENISH_DAILY_AUTO_LIMIT", 2),
			DedupWindow:         getEnvAsDuration("REPLENISH_DEDUP_WINDOW", 10*time.Second),
			LockTTL:             getEnvAsDuration("REPLENISH_LOCK_TTL", 2*time.Minute),
			ReleaseTimeout:      getEnvAsDuration("REPLENISH_RELEASE_TIMEOUT", 30*time.Minute),
			SweepInterval:       getEnvAsDuration("REPLENISH_SWEEP_INTERVAL", 5*time.Minute),
			SettlementTimeout:   getEnvAsDuration("REPLENISH_SETTLEMENT_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate JWT secret
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	// Validate database configuration
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	// Validate Redis configuration
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	// Validate server port
	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	// Validate replenishment settings
	if _, err := time.LoadLocation(c.Replenishment.Timezone); err != nil {
		return fmt.Errorf("REPLENISH_TIMEZONE is invalid: %w", err)
	}
	if c.Replenishment.DailyRunHour < 0 || c.Replenishment.DailyRunHour > 23 {
		return fmt.Errorf("REPLENISH_RUN_HOUR must be between 0 and 23")
	}
	if c.Replenishment.DailyAutoOrderLimit < 1 {
		return fmt.Errorf("REPLENISH_DAILY_AUTO_LIMIT must be at least 1")
	}
	if c.Replenishment.ReleaseTimeout <= 0 {
		return fmt.Errorf("REPLENISH_RELEASE_TIMEOUT must be positive")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Location returns the business calendar timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Replenishment.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
