package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Provider      ProviderConfig      `yaml:"provider"`
	ObjectStorage ObjectStorageConfig `yaml:"object_storage"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Logging       LoggingConfig       `yaml:"logging"`
	App           AppConfig           `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// ProviderConfig holds extraction provider settings
type ProviderConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ObjectStorageConfig holds object storage settings
type ObjectStorageConfig struct {
	Bucket        string `yaml:"bucket"`
	KeyPrefix     string `yaml:"key_prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
	EmulatorHost  string `yaml:"emulator_host"`
}

// ExtractionConfig holds the extraction pipeline settings
type ExtractionConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`     // fixed provider poll cadence
	MaxWait         time.Duration `yaml:"max_wait"`          // wall-clock budget per job
	MaxArchiveBytes int64         `yaml:"max_archive_bytes"` // result archive size bound
	HandleRetention time.Duration `yaml:"handle_retention"`  // in-memory handle retention after terminal status
	ReaperInterval  time.Duration `yaml:"reaper_interval"`   // handle reaper cadence
	RowRetention    time.Duration `yaml:"row_retention"`     // terminal job row retention
	SweepInterval   time.Duration `yaml:"sweep_interval"`    // row retention sweep cadence
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`  // graceful stop budget for the worker service
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file. The provider API key may be
// supplied via the EXTRACTION_PROVIDER_API_KEY environment variable instead
// of the file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if key := os.Getenv("EXTRACTION_PROVIDER_API_KEY"); key != "" {
		config.Provider.APIKey = key
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Extraction.PollInterval <= 0 {
		c.Extraction.PollInterval = 5 * time.Second
	}
	if c.Extraction.MaxWait <= 0 {
		c.Extraction.MaxWait = 300 * time.Second
	}
	if c.Extraction.MaxArchiveBytes <= 0 {
		c.Extraction.MaxArchiveBytes = 100 << 20 // 100 MiB
	}
	if c.Extraction.HandleRetention <= 0 {
		c.Extraction.HandleRetention = 24 * time.Hour
	}
	if c.Extraction.ReaperInterval <= 0 {
		c.Extraction.ReaperInterval = 10 * time.Minute
	}
	if c.Extraction.RowRetention <= 0 {
		c.Extraction.RowRetention = 7 * 24 * time.Hour
	}
	if c.Extraction.SweepInterval <= 0 {
		c.Extraction.SweepInterval = time.Hour
	}
	if c.Extraction.ShutdownTimeout <= 0 {
		c.Extraction.ShutdownTimeout = 30 * time.Second
	}
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = 30 * time.Second
	}
}

// ValidateAPIConfig checks the fields the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	return nil
}

// ValidateWorkerConfig checks the fields the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base_url is required")
	}

	if c.ObjectStorage.Bucket == "" {
		return fmt.Errorf("object_storage bucket is required")
	}

	if c.Extraction.PollInterval >= c.Extraction.MaxWait {
		return fmt.Errorf("extraction poll_interval (%s) must be below max_wait (%s)",
			c.Extraction.PollInterval, c.Extraction.MaxWait)
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
