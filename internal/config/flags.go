package config

import "github.com/spf13/pflag"

// RegisterFlags binds every EngineConfig field to a command-line flag on
// fs, for use by a host cmd/ binary. The engine package itself never calls
// this; it's exported so a future `cmd/toneengine` can wire flag overrides
// without duplicating the field list. The returned func must be called
// after fs.Parse to copy the parsed channel-count flag (held as a uint32
// for pflag's sake) back into cfg's uint8 field.
func RegisterFlags(fs *pflag.FlagSet, cfg *EngineConfig) func() {
	fs.Uint32Var(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "audio sample rate (44100, 48000, 88200, 96000)")
	fs.Uint32Var(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "audio buffer size in frames (power of two, 64..8192)")
	channels := uint32(cfg.ChannelCount)
	fs.Uint32Var(&channels, "channels", channels, "channel count (1 or 2)")
	fs.BoolVar(&cfg.EnablePerformanceMonitoring, "enable-performance-monitoring", cfg.EnablePerformanceMonitoring, "collect cycle-time and underrun metrics")
	fs.BoolVar(&cfg.EnableErrorRecovery, "enable-error-recovery", cfg.EnableErrorRecovery, "enable the error recovery state machine")
	fs.BoolVar(&cfg.EnableLockFreeOperations, "enable-lock-free-operations", cfg.EnableLockFreeOperations, "reject non-realtime-safe graph nodes")
	fs.Uint32Var(&cfg.MaxGraphNodes, "max-graph-nodes", cfg.MaxGraphNodes, "maximum audio graph node count")
	fs.Uint32Var(&cfg.MaxRoutingConnections, "max-routing-connections", cfg.MaxRoutingConnections, "maximum routing matrix connection count")
	fs.Uint32Var(&cfg.BufferPoolSize, "buffer-pool-size", cfg.BufferPoolSize, "initial buffer pool block count")
	fs.Uint32Var(&cfg.CircularBufferCapacity, "circular-buffer-capacity", cfg.CircularBufferCapacity, "SPSC ring buffer capacity in frames")
	return func() { cfg.ChannelCount = uint8(channels) }
}
