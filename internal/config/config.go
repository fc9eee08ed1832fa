package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// EnvPrefix prefixes every environment override, e.g. LEGACYJOBS_SERVER_PORT
	EnvPrefix = "LEGACYJOBS_"
)

// SupportedDrivers are the database/sql driver names the service registers.
var SupportedDrivers = []string{"postgres", "pgx"}

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"    envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database"  envPrefix:"DATABASE_"`
	Dashboard DashboardConfig `yaml:"dashboard" envPrefix:"DASHBOARD_"`
	Logging   LoggingConfig   `yaml:"logging"   envPrefix:"LOGGING_"`
	App       AppConfig       `yaml:"app"       envPrefix:"APP_"`
	Audit     AuditConfig     `yaml:"audit"     envPrefix:"AUDIT_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	SecureCookies   bool          `yaml:"secure_cookies"   env:"SECURE_COOKIES"`
}

// DatabaseConfig holds login form defaults and connection settings.
// Credentials themselves are typed by the operator.
type DatabaseConfig struct {
	DefaultServer    string        `yaml:"default_server"     env:"DEFAULT_SERVER"`
	DefaultDatabase  string        `yaml:"default_database"   env:"DEFAULT_DATABASE"`
	DefaultEncrypt   bool          `yaml:"default_encrypt"    env:"DEFAULT_ENCRYPT"`
	DefaultTrustCert bool          `yaml:"default_trust_cert" env:"DEFAULT_TRUST_CERT"`
	Port             int           `yaml:"port"               env:"PORT"`
	Drivers          []string      `yaml:"drivers"            env:"DRIVERS" envSeparator:","`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"    env:"CONNECT_TIMEOUT"`
}

// DashboardConfig holds the selector choices and the default window.
type DashboardConfig struct {
	PageSizes       []int         `yaml:"page_sizes"        env:"PAGE_SIZES" envSeparator:","`
	DefaultPageSize int           `yaml:"default_page_size" env:"DEFAULT_PAGE_SIZE"`
	Platforms       []string      `yaml:"platforms"         env:"PLATFORMS" envSeparator:","`
	DefaultPlatform string        `yaml:"default_platform"  env:"DEFAULT_PLATFORM"`
	WindowDays      int           `yaml:"window_days"       env:"WINDOW_DAYS"`
	SessionTTL      time.Duration `yaml:"session_ttl"       env:"SESSION_TTL"`
	SweepInterval   time.Duration `yaml:"sweep_interval"    env:"SWEEP_INTERVAL"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"         env:"LEVEL"`
	Format       string `yaml:"format"        env:"FORMAT"`
	Output       string `yaml:"output"        env:"OUTPUT"`
	EnableCaller bool   `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"        env:"NAME"`
	Version     string `yaml:"version"     env:"VERSION"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
}

// AuditConfig holds the optional RabbitMQ access audit trail
type AuditConfig struct {
	Enabled    bool             `yaml:"enabled"     env:"ENABLED"`
	Host       string           `yaml:"host"        env:"HOST"`
	Port       int              `yaml:"port"        env:"PORT"`
	User       string           `yaml:"user"        env:"USER"`
	Password   string           `yaml:"password"    env:"PASSWORD"`
	VHost      string           `yaml:"vhost"       env:"VHOST"`
	Exchange   ExchangeConfig   `yaml:"exchange"    envPrefix:"EXCHANGE_"`
	Queue      QueueConfig      `yaml:"queue"       envPrefix:"QUEUE_"`
	RoutingKey string           `yaml:"routing_key" env:"ROUTING_KEY"`
	Connection ConnectionConfig `yaml:"connection"  envPrefix:"CONNECTION_"`
	Publish    PublishConfig    `yaml:"publish"     envPrefix:"PUBLISH_"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"        env:"NAME"`
	Type       string `yaml:"type"        env:"TYPE"`
	Durable    bool   `yaml:"durable"     env:"DURABLE"`
	AutoDelete bool   `yaml:"auto_delete" env:"AUTO_DELETE"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"        env:"NAME"`
	Durable    bool   `yaml:"durable"     env:"DURABLE"`
	AutoDelete bool   `yaml:"auto_delete" env:"AUTO_DELETE"`
	Exclusive  bool   `yaml:"exclusive"   env:"EXCLUSIVE"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts" env:"RETRY_ATTEMPTS"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL"`
	Heartbeat     time.Duration `yaml:"heartbeat"      env:"HEARTBEAT"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"     env:"RETRY_ATTEMPTS"`
	RetryInterval     time.Duration `yaml:"retry_interval"     env:"RETRY_INTERVAL"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" env:"BACKOFF_MULTIPLIER"`
}

// Load reads the configuration file, fills defaults and applies
// LEGACYJOBS_* environment overrides.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8501
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if len(c.Database.Drivers) == 0 {
		c.Database.Drivers = slices.Clone(SupportedDrivers)
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 15 * time.Second
	}
	if len(c.Dashboard.PageSizes) == 0 {
		c.Dashboard.PageSizes = []int{50, 100, 200, 500}
	}
	if c.Dashboard.DefaultPageSize == 0 {
		c.Dashboard.DefaultPageSize = c.Dashboard.PageSizes[len(c.Dashboard.PageSizes)-1]
	}
	if len(c.Dashboard.Platforms) == 0 {
		c.Dashboard.Platforms = []string{"EDI", "AltaEmpresa", "BajaEmpresa", "AltaUsuario"}
	}
	if c.Dashboard.DefaultPlatform == "" {
		c.Dashboard.DefaultPlatform = c.Dashboard.Platforms[0]
	}
	if c.Dashboard.WindowDays == 0 {
		c.Dashboard.WindowDays = 30
	}
	if c.Dashboard.SessionTTL == 0 {
		c.Dashboard.SessionTTL = 8 * time.Hour
	}
	if c.Dashboard.SweepInterval == 0 {
		c.Dashboard.SweepInterval = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if len(c.Database.Drivers) == 0 {
		return fmt.Errorf("at least one database driver is required")
	}

	for _, d := range c.Database.Drivers {
		if !slices.Contains(SupportedDrivers, d) {
			return fmt.Errorf("unsupported database driver: %q (supported: %v)", d, SupportedDrivers)
		}
	}

	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("database connect_timeout must be greater than 0")
	}

	if err := c.validateDashboard(); err != nil {
		return err
	}

	if c.Audit.Enabled {
		return c.validateAudit()
	}

	return nil
}

func (c *Config) validateDashboard() error {
	d := c.Dashboard

	if len(d.PageSizes) == 0 {
		return fmt.Errorf("dashboard page_sizes must not be empty")
	}

	for _, size := range d.PageSizes {
		if size <= 0 {
			return fmt.Errorf("invalid dashboard page size: %d", size)
		}
	}

	if !slices.Contains(d.PageSizes, d.DefaultPageSize) {
		return fmt.Errorf("dashboard default_page_size %d is not one of %v", d.DefaultPageSize, d.PageSizes)
	}

	if d.DefaultPlatform != domain.AllPlatforms && !slices.Contains(d.Platforms, d.DefaultPlatform) {
		return fmt.Errorf("dashboard default_platform %q is not one of %v", d.DefaultPlatform, d.Platforms)
	}

	if d.WindowDays <= 0 {
		return fmt.Errorf("dashboard window_days must be greater than 0")
	}

	if d.SweepInterval <= 0 {
		return fmt.Errorf("dashboard sweep_interval must be greater than 0")
	}

	return nil
}

func (c *Config) validateAudit() error {
	if c.Audit.Host == "" {
		return fmt.Errorf("audit rabbitmq host is required")
	}

	if c.Audit.Port < MinPort || c.Audit.Port > MaxPort {
		return fmt.Errorf("invalid audit rabbitmq port: %d (must be between %d and %d)", c.Audit.Port, MinPort, MaxPort)
	}

	if c.Audit.Exchange.Name == "" {
		return fmt.Errorf("audit rabbitmq exchange name is required")
	}

	return nil
}
