package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"mtm-hub/src/helpers"
	"mtm-hub/src/models"
	"mtm-hub/src/utils"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills the optional fields left empty in the file.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.AccountsFile == "" {
		c.AccountsFile = "users.json"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = "mtm_dashboard.db"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 5
	}
	if c.Network.ConcurrentRequests == 0 {
		c.Network.ConcurrentRequests = 8
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTLMillis == 0 {
		c.Cache.TTLMillis = 500
	}
	if c.Cache.CleanupIntervalSeconds == 0 {
		c.Cache.CleanupIntervalSeconds = 60
	}
	if c.Session.OpeningTime == "" {
		c.Session.OpeningTime = "09:15"
	}
	if c.Session.StartTime == "" {
		c.Session.StartTime = "09:16"
	}
	if c.Session.ChartStartTime == "" {
		c.Session.ChartStartTime = c.Session.StartTime
	}
	if c.Poller.IntervalSeconds == 0 {
		c.Poller.IntervalSeconds = int(utils.DefaultPollInterval / time.Second)
	}
	if c.Poller.CheckIntervalMs == 0 {
		c.Poller.CheckIntervalMs = int(utils.DefaultCheckInterval / time.Millisecond)
	}
	if c.Poller.RefreshIntervalMs == 0 {
		c.Poller.RefreshIntervalMs = 2000
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Cache configuration
	switch c.Cache.Type {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis cache")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	if c.Cache.TTLMillis < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	// Validate Session configuration
	if _, err := utils.NewTimeGate(c.Session.OpeningTime, c.Session.StartTime); err != nil {
		return fmt.Errorf("invalid session times: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	// Validate Poller configuration
	if c.PollInterval() < utils.MinPollInterval {
		return fmt.Errorf("poller interval must be at least %v", utils.MinPollInterval)
	}
	if c.Poller.CheckIntervalMs <= 0 {
		return fmt.Errorf("poller check interval must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Location resolves the session timezone (empty means the host timezone).
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Session.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid session timezone '%s': %w", tz, err)
	}
	return loc, nil
}

// -----------------------------------------------------------------------------

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Network.RequestTimeout) * time.Second
}

// FetchTimeout covers one terminal fetch including its retries.
func (c *Config) FetchTimeout() time.Duration {
	return c.RequestTimeout() * time.Duration(c.Network.MaxRetries+1)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Poller.CheckIntervalMs) * time.Millisecond
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
