// Package config implements the engine's configuration surface (§6
// "Engine configuration"): a plain struct with documented defaults,
// functional options for programmatic construction (mirroring this
// codebase's PlayerOption pattern), and YAML load/save for file-based
// configuration. CLI flag registration lives here too but is only ever
// wired up by a cmd/ binary, not by the engine package itself.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds every recognized engine option from §6.
type EngineConfig struct {
	SampleRate                  uint32 `yaml:"sample_rate"`
	BufferSize                  uint32 `yaml:"buffer_size"`
	ChannelCount                uint8  `yaml:"channel_count"`
	EnablePerformanceMonitoring bool   `yaml:"enable_performance_monitoring"`
	EnableErrorRecovery         bool   `yaml:"enable_error_recovery"`
	EnableLockFreeOperations    bool   `yaml:"enable_lock_free_operations"`
	MaxGraphNodes               uint32 `yaml:"max_graph_nodes"`
	MaxRoutingConnections       uint32 `yaml:"max_routing_connections"`
	BufferPoolSize              uint32 `yaml:"buffer_pool_size"`
	CircularBufferCapacity      uint32 `yaml:"circular_buffer_capacity"`
}

// DefaultEngineConfig returns the documented defaults from §6.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:                  44100,
		BufferSize:                  512,
		ChannelCount:                2,
		EnablePerformanceMonitoring: true,
		EnableErrorRecovery:         true,
		EnableLockFreeOperations:    true,
		MaxGraphNodes:               64,
		MaxRoutingConnections:       128,
		BufferPoolSize:              64,
		CircularBufferCapacity:      4096,
	}
}

// EngineOption mutates an EngineConfig during construction, mirroring this
// codebase's PlayerOption pattern.
type EngineOption func(*EngineConfig)

func WithSampleRate(rate uint32) EngineOption {
	return func(c *EngineConfig) { c.SampleRate = rate }
}

func WithBufferSize(frames uint32) EngineOption {
	return func(c *EngineConfig) { c.BufferSize = frames }
}

func WithChannelCount(channels uint8) EngineOption {
	return func(c *EngineConfig) { c.ChannelCount = channels }
}

func WithPerformanceMonitoring(enabled bool) EngineOption {
	return func(c *EngineConfig) { c.EnablePerformanceMonitoring = enabled }
}

func WithErrorRecovery(enabled bool) EngineOption {
	return func(c *EngineConfig) { c.EnableErrorRecovery = enabled }
}

func WithLockFreeOperations(enabled bool) EngineOption {
	return func(c *EngineConfig) { c.EnableLockFreeOperations = enabled }
}

func WithMaxGraphNodes(n uint32) EngineOption {
	return func(c *EngineConfig) { c.MaxGraphNodes = n }
}

func WithMaxRoutingConnections(n uint32) EngineOption {
	return func(c *EngineConfig) { c.MaxRoutingConnections = n }
}

func WithBufferPoolSize(n uint32) EngineOption {
	return func(c *EngineConfig) { c.BufferPoolSize = n }
}

func WithCircularBufferCapacity(frames uint32) EngineOption {
	return func(c *EngineConfig) { c.CircularBufferCapacity = frames }
}

// New builds an EngineConfig from the documented defaults plus any
// options, in order.
func New(opts ...EngineOption) EngineConfig {
	cfg := DefaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks the invariants §6 implies: buffer_size must be a power
// of two in [64, 8192], channel_count must be 1 or 2, sample_rate must be
// one of the negotiated rates.
func (c EngineConfig) Validate() error {
	if c.BufferSize < 64 || c.BufferSize > 8192 || c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("%w: buffer_size %d", ErrInvalidConfig, c.BufferSize)
	}
	if c.ChannelCount != 1 && c.ChannelCount != 2 {
		return fmt.Errorf("%w: channel_count %d", ErrInvalidConfig, c.ChannelCount)
	}
	switch c.SampleRate {
	case 44100, 48000, 88200, 96000:
	default:
		return fmt.Errorf("%w: sample_rate %d", ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

var ErrInvalidConfig = fmt.Errorf("invalid engine configuration")

// LoadYAML reads an EngineConfig from a YAML file, starting from the
// documented defaults so a partial file only overrides what it names.
func LoadYAML(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveYAML writes cfg to path as YAML.
func SaveYAML(path string, cfg EngineConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
