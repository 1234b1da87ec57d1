// Package ohlcgen synthesizes the next OHLC bar from the previous one with a
// small uniform random walk on the close and independent wick extensions.
package ohlcgen

import (
	"math"
	"math/rand"
	"time"

	"candlefeed/internal/model"
)

const (
	DefaultTimeframe    = 1 // seconds
	DefaultNoiseEpsilon = 0.0005
	DefaultWickEpsilon  = 0.0003
)

// Config holds the generator amplitudes.
type Config struct {
	// Timeframe is the bar duration in seconds.
	Timeframe int64

	// NoiseEpsilon is the width of the uniform close noise: the close moves
	// by a draw from [-NoiseEpsilon/2, NoiseEpsilon/2).
	NoiseEpsilon float64

	// WickEpsilon scales the random wick added above max(open, close) and
	// below min(open, close).
	WickEpsilon float64
}

func (c *Config) defaults() {
	if c.Timeframe <= 0 {
		c.Timeframe = DefaultTimeframe
	}
	if c.NoiseEpsilon == 0 {
		c.NoiseEpsilon = DefaultNoiseEpsilon
	}
	if c.WickEpsilon == 0 {
		c.WickEpsilon = DefaultWickEpsilon
	}
}

// Generator produces synthetic bars. Not goroutine-safe: *rand.Rand is not.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a generator drawing from rng. A nil rng is seeded from the
// wall clock; pass an explicitly seeded source for reproducible output.
func New(cfg Config, rng *rand.Rand) *Generator {
	cfg.defaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{cfg: cfg, rng: rng}
}

// Timeframe returns the configured bar duration in seconds.
func (g *Generator) Timeframe() int64 { return g.cfg.Timeframe }

// Next returns the bar following prev. open == prev.close and
// time == prev.time + timeframe; high/low bracket open and close by construction.
func (g *Generator) Next(prev model.Bar) model.Bar {
	open := prev.Close
	noise := (g.rng.Float64() - 0.5) * g.cfg.NoiseEpsilon
	close := open + noise

	u1 := g.rng.Float64()
	u2 := g.rng.Float64()

	return model.Bar{
		Time:  prev.Time + g.cfg.Timeframe,
		Open:  open,
		High:  math.Max(open, close) + u1*g.cfg.WickEpsilon,
		Low:   math.Min(open, close) - u2*g.cfg.WickEpsilon,
		Close: close,
	}
}

// Chain returns n bars, each generated from the one before it, starting
// from seed. seed itself is not included.
func (g *Generator) Chain(seed model.Bar, n int) []model.Bar {
	if n <= 0 {
		return nil
	}
	out := make([]model.Bar, n)
	prev := seed
	for i := range out {
		prev = g.Next(prev)
		out[i] = prev
	}
	return out
}
