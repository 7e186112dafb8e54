package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL                = "wss://sync.parley.im/ws"
	DefaultRestURL              = "https://api.parley.im"
	DefaultAPITimeout           = 30 * time.Second
	DefaultHeartbeatInterval    = 25 * time.Second
	DefaultLeaseInterval        = 4 * time.Minute
	DefaultWriteTimeout         = 10 * time.Second
	DefaultFrameBuffer          = 256
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultReconnectMaxAttempts = 10
	DefaultPageSize             = 50
	DefaultMaxRetries           = 3
	DefaultRetryBackoff         = 1 * time.Second
	DefaultHistoryConcurrency   = 4
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

func (c *ClientConfig) applyDefaults() {
	// Server defaults
	if c.Server.WSURL == "" {
		c.Server.WSURL = DefaultWSURL
	}
	if c.Server.RestURL == "" {
		c.Server.RestURL = DefaultRestURL
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultAPITimeout
	}

	// Session defaults
	if c.Session.HeartbeatInterval == 0 {
		c.Session.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Session.LeaseInterval == 0 {
		c.Session.LeaseInterval = DefaultLeaseInterval
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.FrameBuffer == 0 {
		c.Session.FrameBuffer = DefaultFrameBuffer
	}
	if c.Session.ReconnectBaseDelay == 0 {
		c.Session.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Session.ReconnectMaxDelay == 0 {
		c.Session.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Session.ReconnectMaxAttempts == 0 {
		c.Session.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}

	// History defaults
	if c.History.PageSize == 0 {
		c.History.PageSize = DefaultPageSize
	}
	if c.History.MaxRetries == 0 {
		c.History.MaxRetries = DefaultMaxRetries
	}
	if c.History.RetryBackoff == 0 {
		c.History.RetryBackoff = DefaultRetryBackoff
	}
	if c.History.Concurrency == 0 {
		c.History.Concurrency = DefaultHistoryConcurrency
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
