package mux

import (
	"log/slog"

	"github.com/tailored-agentic-units/relay/observability"
	"github.com/tailored-agentic-units/relay/replay"
)

// DefaultSendBufferSize bounds the envelopes queued per subscriber before
// the drop-oldest policy kicks in.
const DefaultSendBufferSize = 256

// Config defines configuration for a Mux instance.
type Config struct {
	// Replay buffer entries retained per session.
	ReplayCapacity int

	// Envelopes queued per subscriber before drop-oldest kicks in.
	SendBufferSize int

	// Observability
	Logger   *slog.Logger
	Observer observability.Observer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReplayCapacity: replay.DefaultCapacity,
		SendBufferSize: DefaultSendBufferSize,
		Logger:         slog.Default(),
		Observer:       observability.NoOpObserver{},
	}
}

func (c *Config) Merge(source *Config) {
	if source.ReplayCapacity > 0 {
		c.ReplayCapacity = source.ReplayCapacity
	}

	if source.SendBufferSize > 0 {
		c.SendBufferSize = source.SendBufferSize
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}

	if source.Observer != nil {
		c.Observer = source.Observer
	}
}
