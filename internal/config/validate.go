package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Server.WSURL == "" {
		return errors.New("server.ws_url is required")
	}
	if !strings.HasPrefix(c.Server.WSURL, "ws://") && !strings.HasPrefix(c.Server.WSURL, "wss://") {
		return fmt.Errorf("server.ws_url must be a ws:// or wss:// URL, got %q", c.Server.WSURL)
	}
	if c.Server.RestURL == "" {
		return errors.New("server.rest_url is required")
	}

	if c.Session.HeartbeatInterval <= 0 {
		return errors.New("session.heartbeat_interval must be > 0")
	}
	if c.Session.LeaseInterval <= 0 {
		return errors.New("session.lease_interval must be > 0")
	}
	if c.Session.ReconnectBaseDelay <= 0 {
		return errors.New("session.reconnect_base_delay must be > 0")
	}
	if c.Session.ReconnectMaxDelay < c.Session.ReconnectBaseDelay {
		return fmt.Errorf("session.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)",
			c.Session.ReconnectMaxDelay, c.Session.ReconnectBaseDelay)
	}
	if c.Session.FrameBuffer < 1 {
		return errors.New("session.frame_buffer must be >= 1")
	}

	if c.History.PageSize < 1 {
		return errors.New("history.page_size must be >= 1")
	}
	if c.History.Concurrency < 1 {
		return errors.New("history.concurrency must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
