package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60.0, cfg.FrameRate)
	assert.Equal(t, 10.0, cfg.SendRate)
	assert.Equal(t, 0.005, cfg.Motion.Epsilon)
	assert.Equal(t, int64(10), cfg.Motion.StopTicks)
	assert.Equal(t, 2.0, cfg.Motion.DefaultSpeed)
	assert.Equal(t, 0.3, cfg.Animation.Crossfade)
	assert.Equal(t, 3.0, cfg.Audio.RefDistance)
	assert.Equal(t, 6.0, cfg.Audio.RollOffFactor)
	assert.Equal(t, "websocket", cfg.Network.Transport)
	assert.Equal(t, "json", cfg.Network.Codec)
	assert.Equal(t, 16, cfg.Assets.CacheShards)
}

func TestLoad(t *testing.T) {
	t.Run("Overlays Defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "replica.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
send_rate: 20
entity: 7
motion:
  default_speed: 3.5
audio:
  panner: true
network:
  transport: quic
  address: 127.0.0.1:4242
  codec: msgpack
  write_timeout: 2s
assets:
  catalog: assets.yaml
  latency: 50ms
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 20.0, cfg.SendRate)
		assert.Equal(t, 60.0, cfg.FrameRate)
		assert.Equal(t, uint64(7), cfg.Entity)
		assert.Equal(t, 3.5, cfg.Motion.DefaultSpeed)
		assert.Equal(t, 0.005, cfg.Motion.Epsilon)
		assert.True(t, cfg.Audio.Panner)
		assert.Equal(t, "quic", cfg.Network.Transport)
		assert.Equal(t, 2*time.Second, cfg.Network.WriteTimeout)
		assert.Equal(t, 50*time.Millisecond, cfg.Assets.Latency)

		rt := cfg.Runtime()
		assert.Equal(t, 3.5, rt.Reconcile.DefaultSpeed)
		assert.Equal(t, 20.0, rt.SendRate)
		assert.Equal(t, int64(10), rt.Motion.StopTicks)

		link := cfg.Link()
		assert.Equal(t, "quic", link.Transport)
		assert.Equal(t, "127.0.0.1:4242", link.Address)
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := Parse([]byte("frame_rate: [1"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"Zero Frame Rate":   func(c *Config) { c.FrameRate = 0 },
		"Negative Send":     func(c *Config) { c.SendRate = -1 },
		"Zero Ref Distance": func(c *Config) { c.Audio.RefDistance = 0 },
		"Smoothing Above 1": func(c *Config) { c.Motion.OrientationSmoothing = 1.5 },
		"Unknown Transport": func(c *Config) { c.Network.Transport = "carrier-pigeon" },
		"Unknown Codec":     func(c *Config) { c.Network.Codec = "xml" },
		"No Cache Shards":   func(c *Config) { c.Assets.CacheShards = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
