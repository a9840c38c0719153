// Package config loads rugengine's layered configuration.
package config

import "fmt"

// Config holds the engine's runtime configuration.
type Config struct {
	Host                   string     `mapstructure:"host"`
	NumWorkers             int        `mapstructure:"num_workers"`
	HealthCheckPeriod      int        `mapstructure:"health_check_period"`
	AMQPURL                string     `mapstructure:"amqp_url"`
	IgnoredRouterDirectory string     `mapstructure:"ignored_router_directory"`
	QueueWarningThreshold  int        `mapstructure:"queue_warning_threshold"`
	RebootErrorThreshold   int        `mapstructure:"reboot_error_threshold"`
	WorkerDequeueTimeout   int        `mapstructure:"worker_dequeue_timeout"`
	ShutdownJoinTimeout    int        `mapstructure:"shutdown_join_timeout"`
	DebugStore             DebugStore `mapstructure:"debug_store"`
	Compute                APIConfig  `mapstructure:"compute"`
	Network                APIConfig  `mapstructure:"network"`
	Log                    LogConfig  `mapstructure:"log"`
}

// DebugStore configures which backing store holds debug flags.
type DebugStore struct {
	Backend       string `mapstructure:"backend"` // "sqlite" or "directory"
	SQLitePath    string `mapstructure:"sqlite_path"`
	DirectoryPath string `mapstructure:"directory_path"`
	CacheTTLMS    int    `mapstructure:"cache_ttl_ms"`
}

// APIConfig configures an outbound HTTP client to a control-plane collaborator.
type APIConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
	Burst                int    `mapstructure:"burst"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Theme string `mapstructure:"theme"`
}

// String returns a short human-readable summary of the active configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Host: %s, NumWorkers: %d, DebugStore: %s}",
		c.Host, c.NumWorkers, c.DebugStore.Backend)
}
