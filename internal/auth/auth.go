// Package auth handles the opaque bearer credential used to authenticate
// the sync session. Token acquisition is an external concern; this package
// only carries, loads, and redacts tokens.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// Credential is an opaque bearer token. It is sent as the first
// application-level frame after transport open and must never appear in
// connection URLs or logs.
type Credential struct {
	token string
}

// NewCredential wraps a raw bearer token.
func NewCredential(token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, fmt.Errorf("bearer token is empty")
	}
	return Credential{token: token}, nil
}

// FromEnv loads the credential from an environment variable.
func FromEnv(name string) (Credential, error) {
	v := os.Getenv(name)
	if v == "" {
		return Credential{}, fmt.Errorf("environment variable %s is not set", name)
	}
	return NewCredential(v)
}

// FromFile loads the credential from a token file.
func FromFile(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credential{}, fmt.Errorf("read token file: %w", err)
	}
	return NewCredential(string(data))
}

// Token returns the raw bearer token.
func (c Credential) Token() string {
	return c.token
}

// IsZero reports whether the credential is unset.
func (c Credential) IsZero() bool {
	return c.token == ""
}

// String returns a redacted form safe for logging.
func (c Credential) String() string {
	if c.token == "" {
		return "<empty>"
	}
	if len(c.token) <= 8 {
		return "****"
	}
	return c.token[:4] + "****"
}
