package ohlcgen

import (
	"math"
	"math/rand"
	"testing"

	"candlefeed/internal/model"
)

var seedBar = model.Bar{Time: 1000, Open: 1.2345, High: 1.2345, Low: 1.2345, Close: 1.2345}

func TestGenerator_BarsAreOrdered(t *testing.T) {
	g := New(Config{}, rand.New(rand.NewSource(7)))

	prev := seedBar
	for i := 0; i < 10000; i++ {
		b := g.Next(prev)
		if b.High < math.Max(b.Open, b.Close) {
			t.Fatalf("bar %d: high %v < max(open, close) in %+v", i, b.High, b)
		}
		if b.Low > math.Min(b.Open, b.Close) {
			t.Fatalf("bar %d: low %v > min(open, close) in %+v", i, b.Low, b)
		}
		prev = b
	}
}

func TestGenerator_ContinuityAndTime(t *testing.T) {
	g := New(Config{Timeframe: 5}, rand.New(rand.NewSource(1)))

	prev := seedBar
	for i := 0; i < 100; i++ {
		b := g.Next(prev)
		if b.Open != prev.Close {
			t.Fatalf("open %v != prev close %v", b.Open, prev.Close)
		}
		if b.Time != prev.Time+5 {
			t.Fatalf("time %d != prev.time+5 (%d)", b.Time, prev.Time+5)
		}
		prev = b
	}
}

func TestGenerator_NoiseBounds(t *testing.T) {
	cfg := Config{NoiseEpsilon: 0.01, WickEpsilon: 0.002}
	g := New(cfg, rand.New(rand.NewSource(3)))

	for i := 0; i < 5000; i++ {
		b := g.Next(seedBar)
		if d := math.Abs(b.Close - b.Open); d > cfg.NoiseEpsilon/2 {
			t.Fatalf("close moved %v, more than eps/2=%v", d, cfg.NoiseEpsilon/2)
		}
		if w := b.High - math.Max(b.Open, b.Close); w < 0 || w >= cfg.WickEpsilon {
			t.Fatalf("upper wick %v outside [0, %v)", w, cfg.WickEpsilon)
		}
		if w := math.Min(b.Open, b.Close) - b.Low; w < 0 || w >= cfg.WickEpsilon {
			t.Fatalf("lower wick %v outside [0, %v)", w, cfg.WickEpsilon)
		}
	}
}

func TestGenerator_ReproducibleWithSeed(t *testing.T) {
	run := func() []model.Bar {
		return New(Config{}, rand.New(rand.NewSource(42))).Chain(seedBar, 50)
	}
	a, b := run(), run()

	for i := range a {
		if a[i].Time != b[i].Time ||
			math.Float64bits(a[i].Open) != math.Float64bits(b[i].Open) ||
			math.Float64bits(a[i].High) != math.Float64bits(b[i].High) ||
			math.Float64bits(a[i].Low) != math.Float64bits(b[i].Low) ||
			math.Float64bits(a[i].Close) != math.Float64bits(b[i].Close) {
			t.Fatalf("bar %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerator_Chain(t *testing.T) {
	g := New(Config{}, rand.New(rand.NewSource(9)))
	bars := g.Chain(seedBar, 6)

	if len(bars) != 6 {
		t.Fatalf("expected 6 bars, got %d", len(bars))
	}
	if bars[0].Time != seedBar.Time+1 || bars[0].Open != seedBar.Close {
		t.Errorf("first bar must continue the seed: %+v", bars[0])
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Open != bars[i-1].Close || bars[i].Time != bars[i-1].Time+1 {
			t.Errorf("bar %d does not continue bar %d", i, i-1)
		}
	}
	if g.Chain(seedBar, 0) != nil {
		t.Error("Chain(0) should be nil")
	}
}
