package silo

import (
	"github.com/TheBitDrifter/table"
	"github.com/mitchellh/mapstructure"
)

// Config holds global configuration for the table system
var Config config = config{}

type config struct {
	tableEvents table.TableEvents
}

// SetTableEvents configures the table event callbacks
func (c *config) SetTableEvents(te table.TableEvents) {
	c.tableEvents = te
}

// RuntimeConfig configures a Runtime at construction time. Zero or negative
// Workers, MaxActions and MaxSystems, and an empty LogLevel, fall back to
// DefaultRuntimeConfig's defaults rather than to Go zero values, since 0
// workers or 0 actions would otherwise silently produce a Runtime that can
// never tick. MetricsEnabled is used as given: false leaves metrics off.
type RuntimeConfig struct {
	// Workers is the size of the scheduler's goroutine pool. A value of 1
	// degrades the scheduler to serial execution with no pool at all.
	Workers int `mapstructure:"workers"`

	// MaxActions bounds the Action Graph's dense id space.
	MaxActions int `mapstructure:"max_actions"`

	// MaxSystems bounds the System Registry's dense id space.
	MaxSystems int `mapstructure:"max_systems"`

	// MetricsEnabled registers the Runtime's Prometheus collectors with the
	// registry returned by Runtime.MetricsRegistry.
	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	// LogLevel is parsed with logrus.ParseLevel; an empty string keeps
	// logrus's default (Info).
	LogLevel string `mapstructure:"log_level"`
}

// DefaultRuntimeConfig returns the configuration a Runtime is built with
// when the caller supplies no overrides.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Workers:        1,
		MaxActions:     64,
		MaxSystems:     256,
		MetricsEnabled: true,
		LogLevel:       "info",
	}
}

// DecodeRuntimeConfig decodes a loosely-typed map, such as one parsed from
// YAML or JSON, into a RuntimeConfig, applying DefaultRuntimeConfig for any
// field the input leaves unset.
func DecodeRuntimeConfig(raw map[string]any) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	defaults := DefaultRuntimeConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.MaxActions <= 0 {
		c.MaxActions = defaults.MaxActions
	}
	if c.MaxSystems <= 0 {
		c.MaxSystems = defaults.MaxSystems
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	return c
}
