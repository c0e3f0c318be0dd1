package server

import "time"

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"

	// DefaultReadLimit caps the size in bytes of a single inbound frame.
	DefaultReadLimit = 1 << 20

	// DefaultWriteTimeout bounds each socket write. A connection that
	// cannot accept a frame within this window is dropped.
	DefaultWriteTimeout = 10 * time.Second
)

// Config holds the transport settings for a Server.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// AllowedOrigins restricts WebSocket upgrades and CORS to the listed
	// origins. Empty accepts any origin.
	AllowedOrigins []string

	// AuthToken, when set, is required as a bearer token on the admin
	// API and as a token query parameter on the WebSocket endpoint.
	// Empty disables authentication.
	AuthToken string

	// ReadLimit is the maximum inbound frame size in bytes.
	ReadLimit int64

	// WriteTimeout is the per-write deadline on every socket.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Addr:         DefaultAddr,
		ReadLimit:    DefaultReadLimit,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Merge applies non-zero fields from other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.AuthToken != "" {
		c.AuthToken = other.AuthToken
	}
	if other.ReadLimit > 0 {
		c.ReadLimit = other.ReadLimit
	}
	if other.WriteTimeout > 0 {
		c.WriteTimeout = other.WriteTimeout
	}
}
