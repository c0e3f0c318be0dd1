package arbiter

import (
	"log/slog"

	"github.com/tailored-agentic-units/relay/observability"
)

// Config defines configuration for an Arbiter instance.
type Config struct {
	// Publisher receives prompt lifecycle events for fan-out. A nil
	// publisher disables the pushes; prompts are then only visible via Peek.
	Publisher Publisher

	// Observability
	Logger   *slog.Logger
	Observer observability.Observer
}

// DefaultConfig returns a Config with sensible defaults. The publisher is
// left nil; the composition root wires it.
func DefaultConfig() Config {
	return Config{
		Logger:   slog.Default(),
		Observer: observability.NoOpObserver{},
	}
}

func (c *Config) Merge(source *Config) {
	if source.Publisher != nil {
		c.Publisher = source.Publisher
	}

	if source.Logger != nil {
		c.Logger = source.Logger
	}

	if source.Observer != nil {
		c.Observer = source.Observer
	}
}
