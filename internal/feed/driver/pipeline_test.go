package driver

import (
	"math/rand"
	"testing"
	"time"

	"candlefeed/internal/feed/animator"
	"candlefeed/internal/feed/ghost"
	"candlefeed/internal/feed/live"
	"candlefeed/internal/feed/ohlcgen"
	"candlefeed/internal/loop"
	"candlefeed/internal/overlay"
	"candlefeed/internal/surface"
)

// TestPipeline runs the driver against a real controller on the virtual
// clock, wired the way feedserver wires it.
func TestPipeline(t *testing.T) {
	clk := loop.NewManual(epoch, 16*time.Millisecond)
	liveStore := surface.NewStore("live", 100, nil)
	ghostStore := surface.NewStore("ghost", 10, nil)
	chart := surface.NewChart(liveStore, ghostStore, 800, 500, 1)
	rec := overlay.NewRecorder(chart.PixelRatio)

	pred := ghost.New(ohlcgen.New(ohlcgen.Config{}, rand.New(rand.NewSource(2))), 6, ghostStore)
	anim := animator.New(clk, animator.Config{}, nil)
	ctrl := live.New(live.Config{
		Timeframe: 1,
		Series:    liveStore,
		Ghosts:    pred,
		Animator:  anim,
		Canvas:    rec,
		View:      chart,
	})
	d := New(Config{AnimateFlips: true}, clk,
		ohlcgen.New(ohlcgen.Config{}, rand.New(rand.NewSource(1))), ctrl, liveStore, nil)
	var errs []error
	d.OnError = func(err error) { errs = append(errs, err) }

	d.Start()
	clk.Advance(10*time.Second + 900*time.Millisecond)

	if len(errs) != 0 {
		t.Fatalf("unexpected ingest errors: %v", errs)
	}
	if ctrl.State() != live.StateOpen {
		t.Fatalf("state = %v", ctrl.State())
	}

	bars := liveStore.Bars()
	// seed + 10 driver bars
	if len(bars) != 11 {
		t.Fatalf("expected 11 bars, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].Time != bars[i-1].Time+1 {
			t.Errorf("bar %d time %d does not follow %d", i, bars[i].Time, bars[i-1].Time)
		}
		if !bars[i].Ordered() {
			t.Errorf("bar %d violates OHLC ordering: %+v", i, bars[i])
		}
	}
	for i := 2; i < len(bars); i++ {
		if bars[i].Open != bars[i-1].Close {
			t.Errorf("bar %d open %v != previous close %v", i, bars[i].Open, bars[i-1].Close)
		}
	}

	// Each bar's animation (6 x 90ms) finished well inside its interval.
	liveBar, _ := ctrl.Live()
	if liveBar.Close != d.Last().Close {
		t.Errorf("live close %v, want driver close %v", liveBar.Close, d.Last().Close)
	}

	if ghostStore.Len() != 6 {
		t.Errorf("ghost queue length = %d, want 6", ghostStore.Len())
	}
	g := ghostStore.Bars()
	if g[0].Time <= liveBar.Time {
		t.Errorf("ghost queue should lie after the live bar: %d <= %d", g[0].Time, liveBar.Time)
	}

	frame := rec.Latest()
	label := overlay.FormatPrice(liveBar.Close)
	found := false
	for _, op := range frame.Ops {
		if op.Op == "text" && op.Text == label {
			found = true
		}
	}
	if !found {
		t.Errorf("latest overlay frame has no %s label: %+v", label, frame.Ops)
	}

	d.Stop()
	ctrl.Close()
	if clk.Pending() != 0 {
		t.Errorf("expected no pending callbacks after teardown, got %d", clk.Pending())
	}
}
