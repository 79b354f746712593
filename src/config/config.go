package config

import (
	"fmt"
	"os"

	"mtclient/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods.
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig loads configuration from a YAML file, filling in defaults for
// anything left unset before validating.
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	modelConfig := *models.DefaultConfig()
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("auth_token cannot be empty")
	}

	if c.Transport.InitialReconnectDelaySeconds <= 0 {
		return fmt.Errorf("transport.initial_reconnect_delay_seconds must be greater than 0")
	}
	if c.Transport.MaxReconnectDelaySeconds < c.Transport.InitialReconnectDelaySeconds {
		return fmt.Errorf("transport.max_reconnect_delay_seconds must be >= initial_reconnect_delay_seconds")
	}
	if c.Transport.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("transport.request_timeout_seconds must be greater than 0")
	}

	if c.Network.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("network.request_timeout_seconds must be greater than 0")
	}
	if c.Network.Retries < 0 {
		return fmt.Errorf("network.retries cannot be negative")
	}
	if c.Network.MaxDelayInSeconds < 0 {
		return fmt.Errorf("network.max_delay_in_seconds cannot be negative")
	}

	if c.Storage.DBType == "" {
		return fmt.Errorf("storage.db_type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("storage.db_connection_string cannot be empty for postgres")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path.
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
