package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpec(t *testing.T) {
	c := DefaultEngineConfig()
	require.Equal(t, uint32(44100), c.SampleRate)
	require.Equal(t, uint32(512), c.BufferSize)
	require.Equal(t, uint8(2), c.ChannelCount)
	require.NoError(t, c.Validate())
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := New(WithSampleRate(48000), WithBufferSize(1024), WithChannelCount(1))
	require.Equal(t, uint32(48000), c.SampleRate)
	require.Equal(t, uint32(1024), c.BufferSize)
	require.Equal(t, uint8(1), c.ChannelCount)
}

func TestValidateRejectsNonPowerOfTwoBufferSize(t *testing.T) {
	c := New(WithBufferSize(500))
	require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
}

func TestYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	want := New(WithSampleRate(96000), WithBufferSize(2048))
	require.NoError(t, SaveYAML(path, want))
	got, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRegisterFlagsAppliesOverrides(t *testing.T) {
	cfg := DefaultEngineConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	sync := RegisterFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--sample-rate=48000", "--channels=1"}))
	sync()
	require.Equal(t, uint32(48000), cfg.SampleRate)
	require.Equal(t, uint8(1), cfg.ChannelCount)
}
