// Package loop provides the single-goroutine cooperative executor that drives
// the feed. Frame callbacks, one-shot timers and repeating timers all run on
// the loop goroutine, so the state they mutate needs no further locking.
//
// Every scheduled callback is identified by a Handle. Cancelling a handle
// guarantees the callback will not run afterwards, even if its timer has
// already fired and the callback is queued behind other work.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler is the subset of the loop the feed components depend on.
// Implemented by *Loop (wall clock) and *Manual (virtual clock for tests).
type Scheduler interface {
	// RequestFrame runs fn once, on the next rendering frame.
	RequestFrame(fn func(now time.Time)) Handle
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Handle
	// Every runs fn each d until cancelled.
	Every(d time.Duration, fn func()) Handle
	// Cancel prevents h from running. Unknown or spent handles are ignored.
	Cancel(h Handle)
	// Now returns the scheduler's current time.
	Now() time.Time
}

// DefaultFrameInterval approximates a 60Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Loop is the wall-clock Scheduler. Call Run on exactly one goroutine.
type Loop struct {
	frameInterval time.Duration
	log           *slog.Logger

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	nextID Handle
	frames []frameReq
	live   map[Handle]struct{} // pending frame requests
	timers map[Handle]*time.Timer
	closed bool
}

type frameReq struct {
	h  Handle
	fn func(time.Time)
}

// New creates a loop that fires frame callbacks every frameInterval.
func New(frameInterval time.Duration, log *slog.Logger) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		frameInterval: frameInterval,
		log:           log,
		ops:           make(chan func(), 4096),
		done:          make(chan struct{}),
		live:          make(map[Handle]struct{}),
		timers:        make(map[Handle]*time.Timer),
	}
}

// Run executes queued work and frame callbacks until ctx is cancelled or
// Close is called. Blocks.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.ops:
			fn()
		case now := <-ticker.C:
			l.runFrames(now)
		}
	}
}

func (l *Loop) runFrames(now time.Time) {
	l.mu.Lock()
	batch := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, f := range batch {
		// A callback earlier in the batch may have cancelled this one.
		if !l.takeFrame(f.h) {
			continue
		}
		f.fn(now)
	}
}

func (l *Loop) takeFrame(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.live[h]; !ok {
		return false
	}
	delete(l.live, h)
	return true
}

// RequestFrame implements Scheduler.
func (l *Loop) RequestFrame(fn func(now time.Time)) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	h := l.id()
	l.frames = append(l.frames, frameReq{h: h, fn: fn})
	l.live[h] = struct{}{}
	return h
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	h := l.id()
	l.schedule(h, d, 0, fn)
	return h
}

// Every implements Scheduler.
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	h := l.id()
	l.schedule(h, d, d, fn)
	return h
}

// schedule arms a timer for h. period > 0 re-arms after each firing.
// Caller holds l.mu.
func (l *Loop) schedule(h Handle, d, period time.Duration, fn func()) {
	l.timers[h] = time.AfterFunc(d, func() {
		l.post(func() {
			l.mu.Lock()
			_, ok := l.timers[h]
			if ok {
				if period > 0 && !l.closed {
					l.schedule(h, period, period, fn)
				} else {
					delete(l.timers, h)
				}
			}
			l.mu.Unlock()

			if ok {
				fn()
			}
		})
	})
}

// Cancel implements Scheduler.
func (l *Loop) Cancel(h Handle) {
	if h == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[h]; ok {
		t.Stop()
		delete(l.timers, h)
	}
	delete(l.live, h)
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

// Post queues fn to run on the loop goroutine. Safe from any goroutine.
// Returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	return l.post(fn)
}

// Call runs fn on the loop goroutine and waits for it to finish.
// Must not be called from the loop goroutine. Returns false if the loop
// closed before fn could run.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) post(fn func()) bool {
	select {
	case l.ops <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Close cancels every pending callback and stops the loop. Work posted after
// Close is dropped. Idempotent.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		for h, t := range l.timers {
			t.Stop()
			delete(l.timers, h)
		}
		l.frames = nil
		l.live = make(map[Handle]struct{})
		l.mu.Unlock()

		close(l.done)
		l.log.Debug("loop closed")
	})
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Pending returns the number of outstanding frame requests and timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live) + len(l.timers)
}

// id issues the next handle. Caller holds l.mu.
func (l *Loop) id() Handle {
	l.nextID++
	return l.nextID
}
