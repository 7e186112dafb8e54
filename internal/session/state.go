package session

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotStarted   = errors.New("session not started")
	ErrGivenUp      = errors.New("reconnect attempts exhausted")
	ErrAuthRejected = errors.New("authentication rejected")
)

// State is the connection lifecycle state. Exactly one value at a time.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateAuthenticated
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateChange describes one lifecycle transition.
type StateChange struct {
	Old State
	New State
	Err error // Set for error transitions (auth rejection, reconnect cap)
}

// Config configures the session Manager.
type Config struct {
	URL                  string        // WebSocket URL
	HeartbeatInterval    time.Duration // Ping cadence; liveness window is twice this
	LeaseInterval        time.Duration // Presence lease renewal cadence (< server TTL)
	ReconnectBaseDelay   time.Duration // First retry delay
	ReconnectMaxDelay    time.Duration // Backoff cap
	ReconnectMaxAttempts int           // Consecutive failures before giving up
	HandshakeTimeout     time.Duration // Transport dial timeout
	WriteTimeout         time.Duration // Transport write deadline
	FrameBuffer          int           // Transport inbound buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    25 * time.Second,
		LeaseInterval:        4 * time.Minute,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ReconnectMaxAttempts: 10,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		FrameBuffer:          256,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.LeaseInterval <= 0 {
		c.LeaseInterval = def.LeaseInterval
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if c.ReconnectMaxAttempts <= 0 {
		c.ReconnectMaxAttempts = def.ReconnectMaxAttempts
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = def.FrameBuffer
	}
}
