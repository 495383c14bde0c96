package signals

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultMaxDepth bounds binding recursion and dirty propagation.
	DefaultMaxDepth = 10
	DefaultMaxNodes = 256
	DefaultShards   = 16
)

type Config struct {
	// MaxDepth is the deepest chain of signal bindings that is evaluated or
	// marked dirty before giving up.
	MaxDepth int
	// MaxNodes limits the nodes a single parse may create.
	MaxNodes int
	// Shards is the number of interning shards for handles and nodes.
	Shards int

	Logger *slog.Logger
	// Metrics, if set, receives the engine's collectors.
	Metrics prometheus.Registerer
	Clock   func() time.Time
}

func DefaultConfig() Config {
	return Config{
		MaxDepth: DefaultMaxDepth,
		MaxNodes: DefaultMaxNodes,
		Shards:   DefaultShards,
		Logger:   slog.Default(),
		Clock:    time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	if c.Shards <= 0 {
		c.Shards = d.Shards
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}
