package config

import (
	"fmt"
	"os"
	"strings"

	"finlink/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Default values applied to fields left unset in the YAML file.
const (
	DefaultHistoryWindow        = 5
	DefaultWordDelayMS          = 30
	DefaultRequestTimeout       = 15
	DefaultConnectTimeout       = 10
	DefaultHeartbeatInterval    = 30
	DefaultReconnectBaseDelayMS = 3000
	DefaultMaxReconnectAttempts = 5
	DefaultRetentionDays        = 30
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

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = DefaultRequestTimeout
	}
	if c.API.HistoryWindow == 0 {
		c.API.HistoryWindow = DefaultHistoryWindow
	}
	if c.API.WordDelayMS == 0 {
		c.API.WordDelayMS = DefaultWordDelayMS
	}
	if c.Push.ConnectTimeout == 0 {
		c.Push.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Push.HeartbeatInterval == 0 {
		c.Push.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Push.ReconnectBaseDelayMS == 0 {
		c.Push.ReconnectBaseDelayMS = DefaultReconnectBaseDelayMS
	}
	if c.Push.MaxReconnectAttempts == 0 {
		c.Push.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate API configuration
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url cannot be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api base_url must be an http(s) URL: %s", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api timeout must be greater than 0")
	}
	if c.API.HistoryWindow <= 0 {
		return fmt.Errorf("api history_window must be greater than 0")
	}
	if c.API.WordDelayMS < 0 {
		return fmt.Errorf("api word_delay_ms cannot be negative")
	}

	// Validate Push configuration
	if c.Push.WSBase == "" {
		return fmt.Errorf("push ws_base cannot be empty")
	}
	if !strings.HasPrefix(c.Push.WSBase, "ws://") && !strings.HasPrefix(c.Push.WSBase, "wss://") {
		return fmt.Errorf("push ws_base must be a ws(s) URL: %s", c.Push.WSBase)
	}
	if c.Push.ConnectTimeout <= 0 {
		return fmt.Errorf("push connect_timeout must be greater than 0")
	}
	if c.Push.HeartbeatInterval <= 0 {
		return fmt.Errorf("push heartbeat_interval must be greater than 0")
	}
	if c.Push.ReconnectBaseDelayMS <= 0 {
		return fmt.Errorf("push reconnect_base_delay_ms must be greater than 0")
	}
	if c.Push.MaxReconnectAttempts < 0 {
		return fmt.Errorf("push max_reconnect_attempts cannot be negative")
	}

	// Validate Storage configuration (local history cache is optional)
	if c.Storage.DBPath != "" && c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage retention_days must be greater than 0")
	}

	return nil
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
