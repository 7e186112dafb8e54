package config

import "time"

// ClientConfig is the root configuration for a sync client instance.
type ClientConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds Parley endpoint settings.
type ServerConfig struct {
	WSURL   string        `yaml:"ws_url"`
	RestURL string        `yaml:"rest_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds connection lifecycle settings.
type SessionConfig struct {
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	LeaseInterval        time.Duration `yaml:"lease_interval"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	FrameBuffer          int           `yaml:"frame_buffer"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMaxAttempts int           `yaml:"reconnect_max_attempts"`
}

// HistoryConfig holds REST history fetch settings.
type HistoryConfig struct {
	PageSize     int           `yaml:"page_size"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Concurrency  int           `yaml:"concurrency"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
