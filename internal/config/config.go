// Package config loads the client configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gopxl/beep"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/replica/internal/core/animation"
	"github.com/zeusync/replica/internal/core/audio"
	"github.com/zeusync/replica/internal/core/codec"
	"github.com/zeusync/replica/internal/core/motion"
	"github.com/zeusync/replica/internal/core/netlink"
	"github.com/zeusync/replica/internal/core/reconcile"
	"github.com/zeusync/replica/internal/core/runtime"
)

var ErrInvalid = errors.New("invalid config")

// Config is the complete client configuration.
type Config struct {
	FrameRate float64 `yaml:"frame_rate"`
	SendRate  float64 `yaml:"send_rate"`
	LogLevel  string  `yaml:"log_level"`
	// Entity is the locally controlled entity id, 0 for spectating.
	Entity uint64 `yaml:"entity"`

	Motion    MotionConfig    `yaml:"motion"`
	Animation AnimationConfig `yaml:"animation"`
	Audio     AudioConfig     `yaml:"audio"`
	Network   NetworkConfig   `yaml:"network"`
	Assets    AssetsConfig    `yaml:"assets"`
}

type MotionConfig struct {
	Epsilon              float64 `yaml:"epsilon"`
	OrientationSmoothing float64 `yaml:"orientation_smoothing"`
	OrientationThreshold float64 `yaml:"orientation_threshold"`
	StopTicks            int64   `yaml:"stop_ticks"`
	DefaultSpeed         float64 `yaml:"default_speed"`
}

type AnimationConfig struct {
	Crossfade float64 `yaml:"crossfade"`
}

type AudioConfig struct {
	RefDistance   float64 `yaml:"ref_distance"`
	RollOffFactor float64 `yaml:"roll_off_factor"`
	Panner        bool    `yaml:"panner"`
	SampleRate    int     `yaml:"sample_rate"`
}

type NetworkConfig struct {
	Transport          string        `yaml:"transport"`
	Address            string        `yaml:"address"`
	Codec              string        `yaml:"codec"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	MaxFrameSize       uint32        `yaml:"max_frame_size"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type AssetsConfig struct {
	Catalog     string        `yaml:"catalog"`
	CacheShards int           `yaml:"cache_shards"`
	Latency     time.Duration `yaml:"latency"`
	Preload     bool          `yaml:"preload"`
}

// DefaultConfig returns the configuration used for every field a file
// leaves out.
func DefaultConfig() *Config {
	m := motion.DefaultConfig()
	r := reconcile.DefaultConfig()
	a := audio.DefaultConfig()
	n := netlink.DefaultConfig()
	return &Config{
		FrameRate: 60,
		SendRate:  10,
		LogLevel:  "info",
		Motion: MotionConfig{
			Epsilon:              m.Epsilon,
			OrientationSmoothing: m.OrientationSmoothing,
			OrientationThreshold: m.OrientationThreshold,
			StopTicks:            m.StopTicks,
			DefaultSpeed:         r.DefaultSpeed,
		},
		Animation: AnimationConfig{Crossfade: animation.DefaultCrossfade},
		Audio: AudioConfig{
			RefDistance:   a.RefDistance,
			RollOffFactor: a.RollOffFactor,
			SampleRate:    int(a.SampleRate),
		},
		Network: NetworkConfig{
			Transport:    n.Transport,
			Address:      n.Address,
			Codec:        "json",
			WriteTimeout: n.WriteTimeout,
			MaxFrameSize: n.MaxFrameSize,
		},
		Assets: AssetsConfig{CacheShards: 16},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime cannot run with.
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, name, v))
		}
	}
	positive("frame_rate", c.FrameRate)
	positive("send_rate", c.SendRate)
	positive("motion.epsilon", c.Motion.Epsilon)
	positive("motion.default_speed", c.Motion.DefaultSpeed)
	positive("motion.stop_ticks", float64(c.Motion.StopTicks))
	positive("audio.ref_distance", c.Audio.RefDistance)
	positive("audio.roll_off_factor", c.Audio.RollOffFactor)
	positive("audio.sample_rate", float64(c.Audio.SampleRate))
	positive("assets.cache_shards", float64(c.Assets.CacheShards))

	if c.Motion.OrientationSmoothing <= 0 || c.Motion.OrientationSmoothing > 1 {
		errs = append(errs, fmt.Errorf("%w: motion.orientation_smoothing must be in (0, 1], got %v",
			ErrInvalid, c.Motion.OrientationSmoothing))
	}
	if c.Animation.Crossfade < 0 {
		errs = append(errs, fmt.Errorf("%w: animation.crossfade must not be negative", ErrInvalid))
	}

	switch c.Network.Transport {
	case netlink.TransportWebSocket, netlink.TransportQUIC:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Network.Transport))
	}
	if _, err := codec.ByName(c.Network.Codec); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Runtime derives the runtime configuration.
func (c *Config) Runtime() runtime.Config {
	cfg := runtime.DefaultConfig()
	cfg.Motion = motion.Config{
		Epsilon:              c.Motion.Epsilon,
		OrientationSmoothing: c.Motion.OrientationSmoothing,
		OrientationThreshold: c.Motion.OrientationThreshold,
		StopTicks:            c.Motion.StopTicks,
	}
	cfg.Reconcile.DefaultSpeed = c.Motion.DefaultSpeed
	cfg.Reconcile.WalkThreshold = c.Motion.Epsilon
	cfg.Audio.RefDistance = c.Audio.RefDistance
	cfg.Audio.RollOffFactor = c.Audio.RollOffFactor
	cfg.Audio.SampleRate = beep.SampleRate(c.Audio.SampleRate)
	cfg.Crossfade = c.Animation.Crossfade
	cfg.SendRate = c.SendRate
	return cfg
}

// Link derives the network link configuration.
func (c *Config) Link() netlink.Config {
	cfg := netlink.DefaultConfig()
	cfg.Transport = c.Network.Transport
	cfg.Address = c.Network.Address
	cfg.WriteTimeout = c.Network.WriteTimeout
	cfg.MaxFrameSize = c.Network.MaxFrameSize
	cfg.InsecureSkipVerify = c.Network.InsecureSkipVerify
	return cfg
}
