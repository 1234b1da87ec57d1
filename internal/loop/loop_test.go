package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(2*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoop_CallRunsOnLoop(t *testing.T) {
	l, _ := startLoop(t)

	v := 0
	if !l.Call(func() { v = 42 }) {
		t.Fatal("Call returned false on a running loop")
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
}

func TestLoop_FrameAndTimerFire(t *testing.T) {
	l, _ := startLoop(t)

	var frames, timers atomic.Int32
	l.Call(func() {
		l.RequestFrame(func(time.Time) { frames.Add(1) })
		l.AfterFunc(5*time.Millisecond, func() { timers.Add(1) })
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && (frames.Load() == 0 || timers.Load() == 0) {
		time.Sleep(time.Millisecond)
	}
	if frames.Load() != 1 || timers.Load() != 1 {
		t.Errorf("expected one frame and one timer, got frames=%d timers=%d", frames.Load(), timers.Load())
	}
}

func TestLoop_CancelledTimerNeverRuns(t *testing.T) {
	l, _ := startLoop(t)

	var ran atomic.Bool
	l.Call(func() {
		h := l.AfterFunc(20*time.Millisecond, func() { ran.Store(true) })
		l.Cancel(h)
	})
	time.Sleep(60 * time.Millisecond)

	if ran.Load() {
		t.Error("cancelled timer ran")
	}
}

func TestLoop_CloseDropsEverything(t *testing.T) {
	l := New(50*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var ran atomic.Bool
	l.Call(func() {
		l.Every(50*time.Millisecond, func() { ran.Store(true) })
		l.RequestFrame(func(time.Time) { ran.Store(true) })
	})
	l.Close()

	if l.Pending() != 0 {
		t.Errorf("expected no pending callbacks after Close, got %d", l.Pending())
	}
	time.Sleep(120 * time.Millisecond)
	if ran.Load() {
		t.Error("callback ran after Close")
	}
	if l.Post(func() {}) {
		t.Error("Post should fail after Close")
	}
	if h := l.AfterFunc(time.Millisecond, func() {}); h != 0 {
		t.Errorf("expected zero handle after Close, got %d", h)
	}
}
