package models

import "time"

// MConfig is the SDK's top-level configuration, loaded from YAML.
type MConfig struct {
	Name       string             `yaml:"name"`
	LogLevel   string             `yaml:"log_level"`
	Domain     string             `yaml:"domain"`
	AuthToken  string             `yaml:"auth_token"`
	Transport  MTransportConfig   `yaml:"transport"`
	Network    MNetworkConfig     `yaml:"network"`
	Storage    MStorageConfig     `yaml:"storage"`
	Health     MHealthConfig      `yaml:"health"`
}

// MTransportConfig controls the reconnecting websocket RPC multiplexer (§4.1, §6).
type MTransportConfig struct {
	InitialReconnectDelaySeconds int `yaml:"initial_reconnect_delay_seconds"`
	MaxReconnectDelaySeconds     int `yaml:"max_reconnect_delay_seconds"`
	RequestTimeoutSeconds        int `yaml:"request_timeout_seconds"`
}

// MNetworkConfig controls HttpClient's retry policy (§4.2).
type MNetworkConfig struct {
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	Retries               int `yaml:"retries"`
	MaxDelayInSeconds     int `yaml:"max_delay_in_seconds"`
}

// MStorageConfig selects and configures the HistoryStorage backend.
type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // "sqlite" or "postgres"
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Schema             string `yaml:"schema"`
}

// MHealthConfig controls ConnectionHealthMonitor sampling (§4.7).
type MHealthConfig struct {
	SampleIntervalSeconds  int   `yaml:"sample_interval_seconds"`
	QuoteStalenessSeconds  int   `yaml:"quote_staleness_seconds"`
	UptimeWindowsMinutes   []int `yaml:"uptime_windows_minutes"`
}

// DefaultConfig returns sane defaults matching the documented defaults in
// spec §4.2 and §5 (retries=2, maxDelayInSeconds budget, 1s/5s reconnect bounds).
func DefaultConfig() *MConfig {
	return &MConfig{
		Name:     "mtclient",
		LogLevel: "info",
		Transport: MTransportConfig{
			InitialReconnectDelaySeconds: 1,
			MaxReconnectDelaySeconds:     5,
			RequestTimeoutSeconds:        60,
		},
		Network: MNetworkConfig{
			RequestTimeoutSeconds: 10,
			Retries:               2,
			MaxDelayInSeconds:     60,
		},
		Storage: MStorageConfig{
			DBType: "sqlite",
			DBPath: "history.db",
		},
		Health: MHealthConfig{
			SampleIntervalSeconds: 60,
			QuoteStalenessSeconds: 30,
			UptimeWindowsMinutes:  []int{60, 1440, 10080},
		},
	}
}

// RequestTimeout/MaxDelay as time.Duration convenience accessors.
func (c *MNetworkConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *MNetworkConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayInSeconds) * time.Second
}
