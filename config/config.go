// Package config loads feed and service settings from an optional .env file,
// an optional YAML file, and FEED_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FEED_TIMEFRAME.
const EnvPrefix = "FEED"

// DefaultPath is the YAML file read when CANDLEFEED_CONFIG is unset.
const DefaultPath = "candlefeed.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all settings. Zero values are replaced by defaults.
type Config struct {
	// Feed options.
	Timeframe        int64   `yaml:"timeframe" envconfig:"TIMEFRAME"` // seconds
	GhostQueueLength int     `yaml:"ghostQueueLength" envconfig:"GHOST_QUEUE_LENGTH"`
	MicroTickCount   int     `yaml:"microTickCount" envconfig:"MICRO_TICK_COUNT"`
	NoiseEpsilon     float64 `yaml:"noiseEpsilon" envconfig:"NOISE_EPSILON"`
	WickEpsilon      float64 `yaml:"wickEpsilon" envconfig:"WICK_EPSILON"`
	TickDurationMs   int     `yaml:"tickDurationMs" envconfig:"TICK_DURATION_MS"`
	InterTickPauseMs int     `yaml:"interTickPauseMs" envconfig:"INTER_TICK_PAUSE_MS"`
	IntervalMs       int     `yaml:"intervalMs" envconfig:"INTERVAL_MS"`
	FrameIntervalMs  int     `yaml:"frameIntervalMs" envconfig:"FRAME_INTERVAL_MS"`
	Seed             int64   `yaml:"seed" envconfig:"SEED"` // 0 = time based
	StartPrice       float64 `yaml:"startPrice" envconfig:"START_PRICE"`
	Symbol           string  `yaml:"symbol" envconfig:"SYMBOL"`
	AnimateFlips     *bool   `yaml:"animateFlips" envconfig:"ANIMATE_FLIPS"`
	HistoryBars      int     `yaml:"historyBars" envconfig:"HISTORY_BARS"`

	// Canvas the overlay is drawn for, in CSS pixels.
	CanvasWidth  float64 `yaml:"canvasWidth" envconfig:"CANVAS_WIDTH"`
	CanvasHeight float64 `yaml:"canvasHeight" envconfig:"CANVAS_HEIGHT"`
	PixelRatio   float64 `yaml:"pixelRatio" envconfig:"PIXEL_RATIO"`

	// Service options.
	ListenAddr    string `yaml:"listenAddr" envconfig:"LISTEN_ADDR"`
	MetricsAddr   string `yaml:"metricsAddr" envconfig:"METRICS_ADDR"`
	RedisAddr     string `yaml:"redisAddr" envconfig:"REDIS_ADDR"` // empty disables the mirror
	RedisPassword string `yaml:"redisPassword" envconfig:"REDIS_PASSWORD"`
	LogLevel      string `yaml:"logLevel" envconfig:"LOG_LEVEL"`
}

// Load reads .env (if present), then the YAML file at path (if present),
// then FEED_* environment overrides, fills defaults and validates.
// An empty path means $CANDLEFEED_CONFIG or DefaultPath.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is the common case.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CANDLEFEED_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero field with its default.
func (c *Config) ApplyDefaults() {
	if c.Timeframe == 0 {
		c.Timeframe = 1
	}
	if c.GhostQueueLength == 0 {
		c.GhostQueueLength = 6
	}
	if c.MicroTickCount == 0 {
		c.MicroTickCount = 6
	}
	if c.NoiseEpsilon == 0 {
		c.NoiseEpsilon = 0.0005
	}
	if c.WickEpsilon == 0 {
		c.WickEpsilon = 0.0003
	}
	if c.TickDurationMs == 0 {
		c.TickDurationMs = 80
	}
	if c.InterTickPauseMs == 0 {
		c.InterTickPauseMs = 10
	}
	if c.IntervalMs == 0 {
		c.IntervalMs = 1000
	}
	if c.FrameIntervalMs == 0 {
		c.FrameIntervalMs = 16
	}
	if c.StartPrice == 0 {
		c.StartPrice = 1.2345
	}
	if c.Symbol == "" {
		c.Symbol = "EURUSD"
	}
	if c.AnimateFlips == nil {
		on := true
		c.AnimateFlips = &on
	}
	if c.HistoryBars == 0 {
		c.HistoryBars = 500
	}
	if c.CanvasWidth == 0 {
		c.CanvasWidth = 800
	}
	if c.CanvasHeight == 0 {
		c.CanvasHeight = 500
	}
	if c.PixelRatio == 0 {
		c.PixelRatio = 1
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects settings the feed cannot run with.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"timeframe", float64(c.Timeframe)},
		{"ghostQueueLength", float64(c.GhostQueueLength)},
		{"microTickCount", float64(c.MicroTickCount)},
		{"tickDurationMs", float64(c.TickDurationMs)},
		{"interTickPauseMs", float64(c.InterTickPauseMs)},
		{"intervalMs", float64(c.IntervalMs)},
		{"frameIntervalMs", float64(c.FrameIntervalMs)},
		{"startPrice", c.StartPrice},
		{"historyBars", float64(c.HistoryBars)},
		{"canvasWidth", c.CanvasWidth},
		{"canvasHeight", c.CanvasHeight},
		{"pixelRatio", c.PixelRatio},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalid, p.name, p.v)
		}
	}
	for name, eps := range map[string]float64{"noiseEpsilon": c.NoiseEpsilon, "wickEpsilon": c.WickEpsilon} {
		if !(eps >= 0) || math.IsInf(eps, 0) {
			return fmt.Errorf("%w: %s must be finite and >= 0, got %v", ErrInvalid, name, eps)
		}
	}
	return nil
}

// TickDuration returns TickDurationMs as a duration.
func (c *Config) TickDuration() time.Duration {
	return time.Duration(c.TickDurationMs) * time.Millisecond
}

// InterTickPause returns InterTickPauseMs as a duration.
func (c *Config) InterTickPause() time.Duration {
	return time.Duration(c.InterTickPauseMs) * time.Millisecond
}

// Interval returns the driver period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// FrameInterval returns the animation frame period.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// FlipAnimation reports whether new bars are re-fed for animation.
func (c *Config) FlipAnimation() bool {
	return c.AnimateFlips == nil || *c.AnimateFlips
}

// RedisEnabled reports whether the Redis mirror is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }
