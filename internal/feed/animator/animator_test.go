package animator

import (
	"math"
	"testing"
	"time"

	"candlefeed/internal/loop"
)

var epoch = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestAnimator() (*Animator, *loop.Manual) {
	clk := loop.NewManual(epoch, 16*time.Millisecond)
	return New(clk, Config{TickDuration: 80 * time.Millisecond, Pause: 10 * time.Millisecond}, nil), clk
}

func TestAnimator_ReachesEveryTarget(t *testing.T) {
	a, clk := newTestAnimator()
	finished := 0
	a.OnFinish = func() { finished++ }

	path := []float64{1.2346, 1.2347, 1.2348}
	var samples []float64
	a.Start(1.2345, path, func(p float64) { samples = append(samples, p) })
	clk.Advance(2 * time.Second)

	if len(samples) == 0 {
		t.Fatal("no samples written")
	}
	if samples[0] != 1.2345 {
		t.Errorf("first sample should be the start price, got %v", samples[0])
	}
	if last := samples[len(samples)-1]; last != 1.2348 {
		t.Errorf("last sample %v != final target 1.2348", last)
	}
	for _, target := range path {
		found := false
		for _, s := range samples {
			if s == target {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("target %v never reached exactly", target)
		}
	}
	if a.Active() || finished != 1 {
		t.Errorf("expected run to finish once, active=%v finished=%d", a.Active(), finished)
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending callbacks, got %d", clk.Pending())
	}
}

func TestAnimator_SamplesEaseTowardTarget(t *testing.T) {
	a, clk := newTestAnimator()

	var samples []float64
	a.Start(1.0, []float64{2.0}, func(p float64) { samples = append(samples, p) })
	clk.Advance(time.Second)

	// 16ms frames over an 80ms tick: t = 0, .2, .4, .6, .8, 1
	if len(samples) != 6 {
		t.Fatalf("expected 6 samples, got %d: %v", len(samples), samples)
	}
	for i, s := range samples {
		want := 1.0 + math.Sin(float64(i)*0.2*math.Pi/2)
		if math.Abs(s-want) > 1e-12 {
			t.Errorf("sample %d: got %v want %v", i, s, want)
		}
	}
}

func TestAnimator_PauseBetweenTicks(t *testing.T) {
	a, clk := newTestAnimator()

	var at []time.Duration
	a.Start(1.0, []float64{1.5, 2.0}, func(float64) { at = append(at, clk.Now().Sub(epoch)) })
	clk.Advance(time.Second)

	// first tick: frames 16..96ms; pause until 106ms; next frame on the 112ms grid point
	if len(at) != 12 {
		t.Fatalf("expected 12 samples, got %d: %v", len(at), at)
	}
	if at[5] != 96*time.Millisecond || at[6] != 112*time.Millisecond {
		t.Errorf("expected tick boundary 96ms -> 112ms, got %v -> %v", at[5], at[6])
	}
}

func TestAnimator_CancelStopsWrites(t *testing.T) {
	a, clk := newTestAnimator()
	cancels := 0
	a.OnCancel = func() { cancels++ }

	writes := 0
	a.Start(1.0, []float64{1.1, 1.2, 1.3}, func(float64) { writes++ })
	clk.Advance(40 * time.Millisecond)
	if writes == 0 {
		t.Fatal("expected writes before cancel")
	}

	before := writes
	a.Cancel()
	clk.Advance(2 * time.Second)

	if writes != before {
		t.Errorf("writes after cancel: %d -> %d", before, writes)
	}
	if cancels != 1 || a.Active() {
		t.Errorf("expected one cancel and inactive, got cancels=%d active=%v", cancels, a.Active())
	}
	if clk.Pending() != 0 {
		t.Errorf("expected nothing pending after cancel, got %d", clk.Pending())
	}

	a.Cancel() // idle cancel is a no-op
	if cancels != 1 {
		t.Errorf("idle cancel fired hook, cancels=%d", cancels)
	}
}

func TestAnimator_CancelDuringPause(t *testing.T) {
	a, clk := newTestAnimator()

	writes := 0
	a.Start(1.0, []float64{1.1, 1.2}, func(float64) { writes++ })
	clk.Advance(100 * time.Millisecond) // first tick done at 96ms, pausing
	before := writes
	a.Cancel()
	clk.Advance(time.Second)

	if writes != before {
		t.Errorf("pause callback wrote after cancel: %d -> %d", before, writes)
	}
}

func TestAnimator_StartSupersedes(t *testing.T) {
	a, clk := newTestAnimator()

	oldWrites, newWrites := 0, 0
	a.Start(1.0, []float64{2.0, 3.0}, func(float64) { oldWrites++ })
	clk.Advance(50 * time.Millisecond)
	frozen := oldWrites

	var last float64
	a.Start(5.0, []float64{6.0}, func(p float64) { newWrites++; last = p })
	clk.Advance(time.Second)

	if oldWrites != frozen {
		t.Errorf("superseded run kept writing: %d -> %d", frozen, oldWrites)
	}
	if newWrites == 0 || last != 6.0 {
		t.Errorf("new run should finish at 6.0, writes=%d last=%v", newWrites, last)
	}
}

func TestAnimator_SkipsNonFiniteTargets(t *testing.T) {
	a, clk := newTestAnimator()
	degenerate := 0
	a.OnDegenerate = func(float64) { degenerate++ }

	var samples []float64
	a.Start(1.0, []float64{math.NaN(), 2.0, math.Inf(1)}, func(p float64) { samples = append(samples, p) })
	clk.Advance(time.Second)

	if degenerate != 2 {
		t.Errorf("expected 2 degenerate targets, got %d", degenerate)
	}
	for _, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			t.Fatalf("non-finite sample written: %v", s)
		}
	}
	if len(samples) == 0 || samples[len(samples)-1] != 2.0 {
		t.Errorf("expected to settle on 2.0, got %v", samples)
	}
	if a.Active() {
		t.Error("run should have finished")
	}
}

func TestAnimator_EmptyPathOnlyCancels(t *testing.T) {
	a, clk := newTestAnimator()
	writes := 0
	a.Start(1.0, []float64{2.0}, func(float64) { writes++ })
	clk.Advance(20 * time.Millisecond)
	before := writes

	a.Start(1.0, nil, func(float64) { t.Error("empty path must not write") })
	clk.Advance(time.Second)

	if writes != before || a.Active() {
		t.Errorf("expected prior run cancelled, writes %d -> %d active=%v", before, writes, a.Active())
	}
}
