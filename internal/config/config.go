package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/pricing"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Database  DatabaseConfig            `yaml:"database"`
	JWT       JWTConfig                 `yaml:"jwt"`
	Payment   PaymentConfig             `yaml:"payment"`
	Damage    domain.SeverityThresholds `yaml:"damage"`
	Pricing   PricingConfig             `yaml:"pricing"`
	Kafka     KafkaConfig               `yaml:"kafka"`
	Redis     RedisConfig               `yaml:"redis"`
	SendGrid  SendGridConfig            `yaml:"sendgrid"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Jobs      JobsConfig                `yaml:"jobs"`
	Scheduler SchedulerConfig           `yaml:"scheduler"`
	Log       LogConfig                 `yaml:"log"`
}

// ServerConfig holds the REST and gRPC health listeners.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig selects the storage driver. Driver "memory" keeps
// everything in process and optionally loads SeedFile at startup.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	SeedFile string `yaml:"seed_file"`
	Migrate  bool   `yaml:"migrate"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// PaymentConfig selects the card processor. The sandbox provider never
// leaves the process.
type PaymentConfig struct {
	Provider        string `yaml:"provider"` // "stripe" or "sandbox"
	StripeSecretKey string `yaml:"stripe_secret_key"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	SandboxMaxCents int64  `yaml:"sandbox_max_cents"`
}

type PricingConfig struct {
	DefaultCurrency string         `yaml:"default_currency"`
	Tiers           []pricing.Tier `yaml:"tiers"`
}

// KafkaConfig is optional; with no brokers events are only logged.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RedisConfig is optional; with no address rental reads are not cached.
type RedisConfig struct {
	Addr                  string `yaml:"addr"`
	Password              string `yaml:"password"`
	DB                    int    `yaml:"db"`
	RentalCacheTTLSeconds int    `yaml:"rental_cache_ttl_seconds"`
}

// SendGridConfig is optional; with no API key emails are only logged.
type SendGridConfig struct {
	APIKey     string `yaml:"api_key"`
	FromEmail  string `yaml:"from_email"`
	FromName   string `yaml:"from_name"`
	AdminEmail string `yaml:"admin_email"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// JobsConfig holds settings for the scheduled collaborator jobs.
type JobsConfig struct {
	// SystemActorID is the admin account the jobs act as.
	SystemActorID int32 `yaml:"system_actor_id"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ExpireStaleRequests string `yaml:"expire_stale_requests"`
	SendOverdueAlerts   string `yaml:"send_overdue_alerts"`
	SendChargeFollowUps string `yaml:"send_charge_follow_ups"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Payment
	if val := os.Getenv("PAYMENT_PROVIDER"); val != "" {
		c.Payment.Provider = val
	}
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Payment.StripeSecretKey = val
	}

	// Messaging, cache, email
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}
	if c.Payment.Provider == "" {
		c.Payment.Provider = "sandbox"
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 10
	}
	if c.Damage == (domain.SeverityThresholds{}) {
		c.Damage = domain.SeverityThresholds{MinorCents: 50000, ModerateCents: 200000, MajorCents: 1000000}
	}
	if c.Pricing.DefaultCurrency == "" {
		c.Pricing.DefaultCurrency = "USD"
	}
	if len(c.Pricing.Tiers) == 0 {
		c.Pricing.Tiers = pricing.DefaultTiers
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "carrental.events"
	}
	if c.Redis.RentalCacheTTLSeconds == 0 {
		c.Redis.RentalCacheTTLSeconds = 300
	}
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = "Car Rental"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 120
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if c.Scheduler.ExpireStaleRequests == "" {
		c.Scheduler.ExpireStaleRequests = "0 5 0 * * *" // 00:05 UTC
	}
	if c.Scheduler.SendOverdueAlerts == "" {
		c.Scheduler.SendOverdueAlerts = "0 0 * * * *" // hourly
	}
	if c.Scheduler.SendChargeFollowUps == "" {
		c.Scheduler.SendChargeFollowUps = "0 0 9 * * *" // 9 AM UTC
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 || c.Server.GRPCPort == c.Server.Port {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRPCPort)
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	switch c.Payment.Provider {
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("stripe secret key is required for the stripe provider")
		}
	case "sandbox":
	default:
		return fmt.Errorf("unknown payment provider %q", c.Payment.Provider)
	}
	if c.Payment.TimeoutSeconds < 0 {
		return fmt.Errorf("payment timeout cannot be negative")
	}

	if err := c.Damage.Validate(); err != nil {
		return fmt.Errorf("damage thresholds: %w", err)
	}
	for _, t := range c.Pricing.Tiers {
		if t.MinDays < 1 || t.DiscountPercent < 0 || t.DiscountPercent >= 100 {
			return fmt.Errorf("invalid pricing tier: %+v", t)
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when an API key is set")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the REST listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health listen address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (c *Config) PaymentTimeout() time.Duration {
	return time.Duration(c.Payment.TimeoutSeconds) * time.Second
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}

func (c *Config) RentalCacheTTL() time.Duration {
	return time.Duration(c.Redis.RentalCacheTTLSeconds) * time.Second
}
